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

package ledger

import (
	"github.com/blinklabs-io/fennec/event"
	"github.com/blinklabs-io/fennec/names"
)

const (
	BlockEventType        event.EventType = "ledger.block"
	RegistrationEventType event.EventType = "ledger.registration"
	UpdateEventType       event.EventType = "ledger.update"
	DetachEventType       event.EventType = "ledger.detach"
)

// BlockEvent is emitted after a block has been fully ingested and the
// checkpoint advanced
type BlockEvent struct {
	Point    Point
	TxCount  int
	Accepted int
	Rejected int
}

// RegistrationEvent is emitted for each record applied to the ledger. Fresh
// registrations are published as RegistrationEventType and signed updates to
// an existing chain as UpdateEventType.
type RegistrationEvent struct {
	Type     names.MappingType
	NameHash names.Hash
	TxID     names.Hash
	Owner    []byte
	Height   uint64
}

// DetachEvent is emitted after history has been detached. Height is the
// first height that was removed and NewTopHeight the checkpoint after the
// detach.
type DetachEvent struct {
	Height          uint64
	NewTopHeight    uint64
	MappingsRemoved int64
	OwnersPruned    int64
}
