// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package network defines the named networks the name ledger can operate
// against and the per-network chain parameters it depends on
package network

import (
	"strings"
	"time"
)

// Network represents a named network
type Network struct {
	Id            uint8
	Name          string
	BlockInterval time.Duration
	WalletPrefix  byte
}

func (n Network) String() string {
	return n.Name
}

// BlocksIn returns the number of blocks expected in the given wall-clock
// duration at the network's target block interval
func (n Network) BlocksIn(d time.Duration) uint64 {
	if n.BlockInterval <= 0 || d <= 0 {
		return 0
	}
	return uint64(d / n.BlockInterval)
}

var (
	Mainnet = Network{
		Id:            0,
		Name:          "mainnet",
		BlockInterval: 120 * time.Second,
		WalletPrefix:  0x46,
	}
	Testnet = Network{
		Id:            1,
		Name:          "testnet",
		BlockInterval: 30 * time.Second,
		WalletPrefix:  0x54,
	}
	Devnet = Network{
		Id:            2,
		Name:          "devnet",
		BlockInterval: 2 * time.Second,
		WalletPrefix:  0x44,
	}
)

// List of valid networks for use in lookup functions
var networks = []Network{
	Mainnet,
	Testnet,
	Devnet,
}

// NetworkByName returns a predefined network by name
func NetworkByName(name string) (Network, bool) {
	name = strings.ToLower(name)
	for _, network := range networks {
		if network.Name == name {
			return network, true
		}
	}
	return Network{}, false
}

// NetworkById returns a predefined network by ID
func NetworkById(id uint8) (Network, bool) {
	for _, network := range networks {
		if network.Id == id {
			return network, true
		}
	}
	return Network{}, false
}
