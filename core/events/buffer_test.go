package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"escrowd/core/types"
)

type bareEvent struct{ typ string }

func (e bareEvent) EventType() string { return e.typ }

type payloadEvent struct{ evt *types.Event }

func (e payloadEvent) EventType() string { return e.evt.Type }

func (e payloadEvent) Event() *types.Event { return e.evt }

func TestBufferRetainsPayloads(t *testing.T) {
	buf := NewBuffer(8)
	buf.Emit(payloadEvent{evt: &types.Event{
		Type:       "escrow.created",
		Attributes: map[string]string{"id": "1"},
	}})
	buf.Emit(bareEvent{typ: "escrow.released"})

	listed := buf.List("", 0)
	require.Len(t, listed, 2)
	require.Equal(t, "escrow.created", listed[0].Type)
	require.Equal(t, "1", listed[0].Attributes["id"])
	require.Equal(t, "escrow.released", listed[1].Type)
	require.NotNil(t, listed[1].Attributes)
}

func TestBufferEvictsOldest(t *testing.T) {
	buf := NewBuffer(3)
	for i := 0; i < 5; i++ {
		buf.Emit(bareEvent{typ: fmt.Sprintf("escrow.e%d", i)})
	}
	listed := buf.List("", 0)
	require.Len(t, listed, 3)
	require.Equal(t, "escrow.e2", listed[0].Type)
	require.Equal(t, "escrow.e4", listed[2].Type)
}

func TestBufferPrefixAndLimit(t *testing.T) {
	buf := NewBuffer(16)
	buf.Emit(bareEvent{typ: "escrow.created"})
	buf.Emit(bareEvent{typ: "fees.withdrawn"})
	buf.Emit(bareEvent{typ: "escrow.disputed"})
	buf.Emit(bareEvent{typ: "escrow.resolved"})

	escrowOnly := buf.List("escrow.", 0)
	require.Len(t, escrowOnly, 3)

	newest := buf.List("escrow.", 2)
	require.Len(t, newest, 2)
	require.Equal(t, "escrow.disputed", newest[0].Type)
	require.Equal(t, "escrow.resolved", newest[1].Type)
}

func TestBufferDefaultCapacity(t *testing.T) {
	buf := NewBuffer(0)
	require.Equal(t, defaultBufferCapacity, buf.capacity)
}

func TestNilBufferIsInert(t *testing.T) {
	var buf *Buffer
	buf.Emit(bareEvent{typ: "escrow.created"})
	require.Nil(t, buf.List("", 0))
}
