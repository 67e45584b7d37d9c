package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"escrowd/crypto"
	"escrowd/native/fees"
)

type Config struct {
	RPCAddress     string   `toml:"RPCAddress"`
	DataDir        string   `toml:"DataDir"`
	Owner          string   `toml:"Owner"`
	PlatformFeeBps uint32   `toml:"PlatformFeeBps"`
	ArbiterFeeBps  uint32   `toml:"ArbiterFeeBps"`
	ArbitersFile   string   `toml:"ArbitersFile"`
	LogFile        string   `toml:"LogFile"`
	PausedModules  []string `toml:"PausedModules"`
	EventBuffer    int      `toml:"EventBuffer"`
}

const (
	defaultRPCAddress     = "127.0.0.1:8545"
	defaultDataDir        = "./escrowd-data"
	defaultPlatformFeeBps = 250
	defaultArbiterFeeBps  = 100
)

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s contains unknown keys: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:     defaultRPCAddress,
		DataDir:        defaultDataDir,
		PlatformFeeBps: defaultPlatformFeeBps,
		ArbiterFeeBps:  defaultArbiterFeeBps,
		PausedModules:  []string{},
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for use by the daemon and returns every
// problem found.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.RPCAddress) == "" {
		problems = append(problems, "RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		problems = append(problems, "DataDir must not be empty")
	}
	if strings.TrimSpace(c.Owner) == "" {
		problems = append(problems, "Owner must be set to the platform owner address")
	} else if _, err := crypto.DecodeAddress(c.Owner); err != nil {
		problems = append(problems, fmt.Sprintf("Owner is not a valid address: %v", err))
	}
	if uint64(c.PlatformFeeBps)+uint64(c.ArbiterFeeBps) > fees.BpsDenominator {
		problems = append(problems, fmt.Sprintf("combined fee rate exceeds %d bps", fees.BpsDenominator))
	}
	if c.EventBuffer < 0 {
		problems = append(problems, "EventBuffer must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// OwnerAddress decodes the configured owner.
func (c *Config) OwnerAddress() ([20]byte, error) {
	addr, err := crypto.DecodeAddress(c.Owner)
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Raw(), nil
}

type arbiterSeed struct {
	Arbiters []string `yaml:"arbiters"`
}

// LoadArbiters reads the YAML seed list of approved arbiter addresses. An
// empty path yields an empty set.
func LoadArbiters(path string) ([][20]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed arbiterSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse arbiter seed %s: %w", path, err)
	}
	addrs := make([][20]byte, 0, len(seed.Arbiters))
	for _, entry := range seed.Arbiters {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(entry))
		if err != nil {
			return nil, fmt.Errorf("arbiter seed %s: %w", entry, err)
		}
		addrs = append(addrs, addr.Raw())
	}
	return addrs, nil
}
