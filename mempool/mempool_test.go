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

package mempool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/fennec/event"
	"github.com/blinklabs-io/fennec/ledger"
	"github.com/blinklabs-io/fennec/names"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/blake2b"
)

// mockValidator is a test validator that can be configured to pass or fail
type mockValidator struct {
	failNameHashes map[string]bool
	mu             sync.Mutex
	failAll        bool
}

func newMockValidator() *mockValidator {
	return &mockValidator{
		failNameHashes: make(map[string]bool),
	}
}

func (v *mockValidator) ValidatePendingRegistration(
	reg *names.Registration,
) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failAll {
		return fmt.Errorf("validation disabled")
	}
	if v.failNameHashes[reg.NameHash.String()] {
		return fmt.Errorf("validation failed for %s", reg.NameHash)
	}
	return nil
}

func (v *mockValidator) setFailName(name string, fail bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failNameHashes[names.NameToHash(name).String()] = fail
}

func (v *mockValidator) setFailAll(fail bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failAll = fail
}

// testRegistration builds a well-formed chat registration payload. The
// mock validator does not inspect the value or signature, so placeholder
// bytes of the correct sizes are enough.
func testRegistration(name string) *names.Registration {
	return &names.Registration{
		Type:     names.Chat,
		NameHash: names.NameToHash(name),
		Value: bytes.Repeat(
			[]byte{0x22},
			names.ChatValueBinaryLength+names.EncryptionOverhead,
		),
		Owner: bytes.Repeat([]byte{0x33}, names.OwnerKeySize),
	}
}

func newTestMempool(t *testing.T, v RegistrationValidator) *Mempool {
	t.Helper()
	if v == nil {
		v = newMockValidator()
	}
	bus := event.NewEventBus(nil, nil)
	m := NewMempool(MempoolConfig{
		Logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		EventBus:        bus,
		PromRegistry:    prometheus.NewRegistry(),
		Validator:       v,
		MempoolCapacity: 1024 * 1024,
	})
	t.Cleanup(func() {
		_ = m.Stop(context.Background())
		bus.Stop()
	})
	return m
}

func TestMempoolStop(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	// The event bus keeps its own worker pool alive across Stop, so only
	// goroutines started after this point are checked
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	m := NewMempool(MempoolConfig{
		Logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		EventBus:        bus,
		PromRegistry:    prometheus.NewRegistry(),
		Validator:       newMockValidator(),
		MempoolCapacity: 1024,
	})
	_, err := m.AddRegistration(testRegistration("stop-test"))
	require.NoError(t, err)
	require.NoError(t, m.Stop(context.Background()))
	// Stop is idempotent
	require.NoError(t, m.Stop(context.Background()))
	// Pool contents survive Stop
	assert.Len(t, m.Registrations(), 1)
}

func TestAddRegistration(t *testing.T) {
	m := newTestMempool(t, nil)
	reg := testRegistration("alice")
	txId, err := m.AddRegistration(reg)
	require.NoError(t, err)
	assert.False(t, txId.IsZero())

	entry, ok := m.GetRegistration(txId.String())
	require.True(t, ok)
	assert.Equal(t, txId, entry.TxID)
	assert.Equal(t, reg, entry.Registration)
	assert.NotEmpty(t, entry.Body)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.metrics.registrationsAdded))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.metrics.registrationsInPool))
	assert.Equal(
		t,
		float64(len(entry.Body)),
		testutil.ToFloat64(m.metrics.mempoolBytes),
	)

	// Re-adding the same payload refreshes last seen without growing the pool
	firstSeen := entry.LastSeen
	time.Sleep(5 * time.Millisecond)
	dupId, err := m.AddRegistration(reg)
	require.NoError(t, err)
	assert.Equal(t, txId, dupId)
	assert.Len(t, m.Registrations(), 1)
	entry, ok = m.GetRegistration(txId.String())
	require.True(t, ok)
	assert.True(t, entry.LastSeen.After(firstSeen))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.metrics.registrationsInPool))
}

func TestAddRegistrationValidationFailure(t *testing.T) {
	v := newMockValidator()
	v.setFailAll(true)
	m := newTestMempool(t, v)
	_, err := m.AddRegistration(testRegistration("rejected"))
	require.Error(t, err)
	assert.Empty(t, m.Registrations())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.metrics.registrationsInPool))
}

func TestMempoolCapacity(t *testing.T) {
	v := newMockValidator()
	bus := event.NewEventBus(nil, nil)
	first := testRegistration("first")
	firstBody, err := first.MarshalBinary()
	require.NoError(t, err)
	// Room for exactly one entry
	m := NewMempool(MempoolConfig{
		Logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		EventBus:        bus,
		PromRegistry:    prometheus.NewRegistry(),
		Validator:       v,
		MempoolCapacity: int64(len(firstBody)),
	})
	t.Cleanup(func() {
		_ = m.Stop(context.Background())
		bus.Stop()
	})
	_, err = m.AddRegistration(first)
	require.NoError(t, err)
	_, err = m.AddRegistration(testRegistration("second"))
	require.Error(t, err)
	var fullErr *MempoolFullError
	require.ErrorAs(t, err, &fullErr)
	assert.Equal(t, len(firstBody), fullErr.CurrentSize)
	assert.Equal(t, int64(len(firstBody)), fullErr.Capacity)
	assert.Len(t, m.Registrations(), 1)

	// Capacity frees up after removal
	m.RemoveRegistration(registrationTxId(t, first).String())
	_, err = m.AddRegistration(testRegistration("second"))
	require.NoError(t, err)
}

// registrationTxId derives the pool's transaction id for a payload
func registrationTxId(t *testing.T, reg *names.Registration) names.Hash {
	t.Helper()
	body, err := reg.MarshalBinary()
	require.NoError(t, err)
	return names.Hash(blake2b.Sum256(body))
}

func TestRegistrationsSnapshotOrder(t *testing.T) {
	m := newTestMempool(t, nil)
	hashes := make([]string, 0, 3)
	for _, name := range []string{"one", "two", "three"} {
		txId, err := m.AddRegistration(testRegistration(name))
		require.NoError(t, err)
		hashes = append(hashes, txId.String())
	}
	snapshot := m.Registrations()
	require.Len(t, snapshot, 3)
	for i, entry := range snapshot {
		assert.Equal(t, hashes[i], entry.Hash)
	}
	// The snapshot is a copy; mutating it does not reach the pool
	snapshot[0].Hash = "mutated"
	entry, ok := m.GetRegistration(hashes[0])
	require.True(t, ok)
	assert.Equal(t, hashes[0], entry.Hash)
}

func TestRemoveRegistrationEvents(t *testing.T) {
	v := newMockValidator()
	bus := event.NewEventBus(nil, nil)
	m := NewMempool(MempoolConfig{
		Logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		EventBus:        bus,
		PromRegistry:    prometheus.NewRegistry(),
		Validator:       v,
		MempoolCapacity: 1024 * 1024,
	})
	t.Cleanup(func() {
		_ = m.Stop(context.Background())
		bus.Stop()
	})
	_, addChan := bus.Subscribe(AddRegistrationEventType)
	_, removeChan := bus.Subscribe(RemoveRegistrationEventType)

	txId, err := m.AddRegistration(testRegistration("observed"))
	require.NoError(t, err)
	select {
	case evt := <-addChan:
		addEvt, ok := evt.Data.(AddRegistrationEvent)
		require.True(t, ok)
		assert.Equal(t, txId.String(), addEvt.Hash)
		assert.Equal(t, names.Chat, addEvt.Type)
		assert.NotEmpty(t, addEvt.Body)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for add event")
	}

	m.RemoveRegistration(txId.String())
	select {
	case evt := <-removeChan:
		removeEvt, ok := evt.Data.(RemoveRegistrationEvent)
		require.True(t, ok)
		assert.Equal(t, txId.String(), removeEvt.Hash)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for remove event")
	}
	assert.Empty(t, m.Registrations())
}

func TestRemoveAppliedByLedger(t *testing.T) {
	v := newMockValidator()
	bus := event.NewEventBus(nil, nil)
	m := NewMempool(MempoolConfig{
		Logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		EventBus:        bus,
		PromRegistry:    prometheus.NewRegistry(),
		Validator:       v,
		MempoolCapacity: 1024 * 1024,
	})
	t.Cleanup(func() {
		_ = m.Stop(context.Background())
		bus.Stop()
	})
	reg := testRegistration("applied")
	txId, err := m.AddRegistration(reg)
	require.NoError(t, err)
	other, err := m.AddRegistration(testRegistration("still-pending"))
	require.NoError(t, err)

	// The ledger announcing the registration drops it from the pool
	bus.Publish(
		ledger.RegistrationEventType,
		event.NewEvent(
			ledger.RegistrationEventType,
			ledger.RegistrationEvent{
				Type:     reg.Type,
				NameHash: reg.NameHash,
				TxID:     txId,
				Owner:    reg.Owner,
				Height:   1,
			},
		),
	)
	require.Eventually(t, func() bool {
		_, ok := m.GetRegistration(txId.String())
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	_, ok := m.GetRegistration(other.String())
	assert.True(t, ok)
}

func TestRevalidateOnBlock(t *testing.T) {
	v := newMockValidator()
	bus := event.NewEventBus(nil, nil)
	m := NewMempool(MempoolConfig{
		Logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		EventBus:        bus,
		PromRegistry:    prometheus.NewRegistry(),
		Validator:       v,
		MempoolCapacity: 1024 * 1024,
	})
	t.Cleanup(func() {
		_ = m.Stop(context.Background())
		bus.Stop()
	})
	doomed, err := m.AddRegistration(testRegistration("doomed"))
	require.NoError(t, err)
	kept, err := m.AddRegistration(testRegistration("kept"))
	require.NoError(t, err)

	// A competing record landed on chain, invalidating one pooled entry
	v.setFailName("doomed", true)
	bus.Publish(
		ledger.BlockEventType,
		event.NewEvent(
			ledger.BlockEventType,
			ledger.BlockEvent{TxCount: 1, Accepted: 1},
		),
	)
	require.Eventually(t, func() bool {
		_, ok := m.GetRegistration(doomed.String())
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	_, ok := m.GetRegistration(kept.String())
	assert.True(t, ok)
}
