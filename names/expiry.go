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

package names

import (
	"math"
	"time"

	"github.com/blinklabs-io/fennec/network"
)

// NoExpiry marks a namespace whose registrations never expire
const NoExpiry = uint64(math.MaxUint64)

const (
	day             = 24 * time.Hour
	renewWindowDays = 31
)

// ExpiryBlocks returns how many blocks after registration a record in
// the namespace remains active on the given network, along with the
// length in blocks of the renewal window preceding expiry. The onion
// tenures are fixed real-world durations, so different networks yield
// different block counts. Non-expiring namespaces return NoExpiry and a
// zero window
func ExpiryBlocks(
	net network.Network,
	mappingType MappingType,
) (blocks uint64, renewWindow uint64) {
	var tenure time.Duration
	switch mappingType {
	case Onion1Year:
		tenure = 365 * day
	case Onion2Years:
		tenure = 730 * day
	case Onion5Years:
		tenure = 1825 * day
	case Onion10Years:
		tenure = 3650 * day
	default:
		return NoExpiry, 0
	}
	return net.BlocksIn(tenure), net.BlocksIn(renewWindowDays * day)
}

// IsActive reports whether a record registered at registerHeight is
// still active at the given height. Always true for non-expiring
// namespaces
func IsActive(
	net network.Network,
	mappingType MappingType,
	registerHeight uint64,
	height uint64,
) bool {
	blocks, _ := ExpiryBlocks(net, mappingType)
	if blocks == NoExpiry {
		return true
	}
	if registerHeight > math.MaxUint64-blocks {
		return true
	}
	return height < registerHeight+blocks
}
