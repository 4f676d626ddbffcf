/*
Package config defines protocol settings of the execution engine and provides
their YAML decoding.
*/
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nspcc-dev/neo-go/pkg/config/netmode"
	"github.com/nspcc-dev/neoexec/fee"
	"gopkg.in/yaml.v3"
)

// DefaultAddressVersion is the address version of N3 networks.
const DefaultAddressVersion = 0x35

// ProtocolSettings groups network parameters affecting script execution.
type ProtocolSettings struct {
	Magic          netmode.Magic     `yaml:"Magic"`
	AddressVersion byte              `yaml:"AddressVersion"`
	Hardforks      map[string]uint32 `yaml:"Hardforks"`
	// MaxTraceableBlocks limits ledger lookups of the engine.
	MaxTraceableBlocks uint32 `yaml:"MaxTraceableBlocks"`
	// InitialGasDistribution is the amount of GAS minted at genesis, datoshi.
	InitialGasDistribution int64 `yaml:"InitialGasDistribution"`
	// Genesis values of the policy, used for the genesis block and when
	// there is no policy contract available.
	ExecFeeFactor   uint32 `yaml:"ExecFeeFactor"`
	StoragePrice    uint32 `yaml:"StoragePrice"`
	MemoryFeeFactor uint32 `yaml:"MemoryFeeFactor"`
}

type file struct {
	ProtocolConfiguration ProtocolSettings `yaml:"ProtocolConfiguration"`
}

var errUnknownHardfork = errors.New("unknown hardfork")

// Default returns settings of the given network with all hardforks enabled
// from the genesis.
func Default(magic netmode.Magic) ProtocolSettings {
	hfs := make(map[string]uint32, len(Hardforks))
	for _, h := range Hardforks {
		hfs[h.String()] = 0
	}
	return ProtocolSettings{
		Magic:                  magic,
		AddressVersion:         DefaultAddressVersion,
		Hardforks:              hfs,
		MaxTraceableBlocks:     2102400,
		InitialGasDistribution: 52_000_000_00000000,
		ExecFeeFactor:          fee.DefaultExecFeeFactor,
		StoragePrice:           fee.DefaultStoragePrice,
		MemoryFeeFactor:        fee.DefaultMemoryFeeFactor,
	}
}

// Load reads settings from the YAML file located at the given path.
func Load(path string) (ProtocolSettings, error) {
	f, err := os.Open(path)
	if err != nil {
		return ProtocolSettings{}, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads YAML settings from r. Omitted policy values are set to their
// genesis defaults.
func Decode(r io.Reader) (ProtocolSettings, error) {
	var cfg = file{ProtocolConfiguration: ProtocolSettings{
		AddressVersion:  DefaultAddressVersion,
		ExecFeeFactor:   fee.DefaultExecFeeFactor,
		StoragePrice:    fee.DefaultStoragePrice,
		MemoryFeeFactor: fee.DefaultMemoryFeeFactor,
	}}

	err := yaml.NewDecoder(r).Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return ProtocolSettings{}, fmt.Errorf("decode YAML: %w", err)
	}

	err = cfg.ProtocolConfiguration.Validate()
	if err != nil {
		return ProtocolSettings{}, err
	}

	return cfg.ProtocolConfiguration, nil
}

// Validate checks hardfork configuration: names must be known and activation
// heights must not decrease in activation order.
func (s ProtocolSettings) Validate() error {
	for name := range s.Hardforks {
		if _, ok := ParseHardfork(name); !ok {
			return fmt.Errorf("%w: %s", errUnknownHardfork, name)
		}
	}

	var (
		prev     uint32
		prevName string
	)
	for _, h := range Hardforks {
		height, ok := s.Hardforks[h.String()]
		if !ok {
			continue
		}
		if height < prev {
			return fmt.Errorf("hardfork %s is activated at %d before %s at %d", h, height, prevName, prev)
		}
		prev, prevName = height, h.String()
	}

	return nil
}

// IsHardforkEnabled checks whether the hardfork is active at the given
// height. Hardforks missing in the configuration are never enabled.
func (s ProtocolSettings) IsHardforkEnabled(h Hardfork, height uint32) bool {
	if h == HFDefault {
		return true
	}
	activation, ok := s.Hardforks[h.String()]
	if !ok {
		return false
	}
	return height >= activation
}
