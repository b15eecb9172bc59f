package config

import (
	_ "embed"
	"fmt"

	tml "github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

//go:embed networks.toml
var defaultNetworks string

type Network struct {
	Name               string `toml:"-"`
	ChainId            uint64 `toml:"chainId"`
	Development        bool   `toml:"development"`
	BlockConfirmations uint16 `toml:"blockConfirmations"`
	VrfCoordinator     string `toml:"vrfCoordinator"`
	KeyHash            string `toml:"keyHash"`
}

// Coordinator returns the address of the VRF coordinator of the network, if
// it has one deployed.
func (n Network) Coordinator() (common.Address, bool) {
	if !common.IsHexAddress(n.VrfCoordinator) {
		return common.Address{}, false
	}
	return common.HexToAddress(n.VrfCoordinator), true
}

// LoadNetworks returns the embedded network profiles, overridden by those
// defined in the given file, if any.
func LoadNetworks(path string) (map[string]Network, error) {
	networks := make(map[string]Network)
	if _, err := tml.Decode(defaultNetworks, &networks); err != nil {
		return nil, fmt.Errorf("failed to decode default networks: %s", err)
	}

	if len(path) > 0 {
		custom := make(map[string]Network)
		if _, err := tml.DecodeFile(path, &custom); err != nil {
			return nil, fmt.Errorf("failed to decode networks file %s: %s", path, err)
		}
		for name, network := range custom {
			networks[name] = network
		}
	}

	for name, network := range networks {
		network.Name = name
		networks[name] = network
	}
	return networks, nil
}
