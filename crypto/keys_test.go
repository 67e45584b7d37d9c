package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	var raw [20]byte
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := NewAddressFromRaw(raw)
	encoded := addr.String()
	require.True(t, strings.HasPrefix(encoded, Prefix+"1"))

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, raw, decoded.Raw())
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	_, err := DecodeAddress("not-an-address")
	require.Error(t, err)

	// valid bech32 with a foreign prefix
	var raw [20]byte
	encoded := NewAddressFromRaw(raw).String()
	foreign := "nhb" + strings.TrimPrefix(encoded, Prefix)
	_, err = DecodeAddress(foreign)
	require.Error(t, err)
}

func TestIsZero(t *testing.T) {
	require.True(t, NewAddressFromRaw([20]byte{}).IsZero())
	require.True(t, Address{}.IsZero())

	var raw [20]byte
	raw[19] = 0x01
	require.False(t, NewAddressFromRaw(raw).IsZero())
}

func TestKeyDerivesStableAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	restored, err := PrivateKeyFromBytes(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address().String(), restored.PubKey().Address().String())
}
