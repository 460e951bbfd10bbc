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

package producer_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/blinklabs-io/fennec/database"
	"github.com/blinklabs-io/fennec/event"
	"github.com/blinklabs-io/fennec/ledger"
	"github.com/blinklabs-io/fennec/mempool"
	"github.com/blinklabs-io/fennec/names"
	"github.com/blinklabs-io/fennec/network"
	"github.com/blinklabs-io/fennec/producer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStack struct {
	ledger   *ledger.Ledger
	mempool  *mempool.Mempool
	producer *producer.BlockProducer
}

func newTestStack(t *testing.T, interval time.Duration) *testStack {
	t.Helper()
	db, err := database.New(
		&database.Config{
			DataDir:        t.TempDir(),
			BlobPlugin:     "badger",
			MetadataPlugin: "sqlite",
			BlobCacheSize:  1 << 20,
		},
	)
	require.NoError(t, err)
	bus := event.NewEventBus(nil, nil)
	lg, err := ledger.NewLedger(
		ledger.LedgerConfig{
			Database: db,
			Network:  network.Devnet,
			EventBus: bus,
		},
	)
	require.NoError(t, err)
	pool := mempool.NewMempool(mempool.MempoolConfig{
		EventBus:        bus,
		Validator:       lg,
		MempoolCapacity: 1 << 20,
	})
	prod, err := producer.NewBlockProducer(producer.BlockProducerConfig{
		Ledger:   lg,
		Mempool:  pool,
		Interval: interval,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		prod.Stop()
		_ = pool.Stop(context.Background())
		bus.Stop()
		lg.Close()
	})
	return &testStack{ledger: lg, mempool: pool, producer: prod}
}

func chatRegistration(
	t *testing.T,
	name string,
	pub ed25519.PublicKey,
) *names.Registration {
	t.Helper()
	plain := bytes.Repeat([]byte{0x11}, names.ChatValueBinaryLength)
	plain[0] = 0x05
	value, err := names.NewMappingValue(plain)
	require.NoError(t, err)
	encrypted, err := names.EncryptValue(name, value)
	require.NoError(t, err)
	return &names.Registration{
		Type:     names.Chat,
		NameHash: names.NameToHash(name),
		Value:    encrypted.Bytes(),
		Owner:    pub,
	}
}

func TestProducerLifecycle(t *testing.T) {
	stack := newTestStack(t, 10*time.Millisecond)
	require.NoError(t, stack.producer.Start(context.Background()))
	assert.True(t, stack.producer.IsRunning())
	// A second start while running is refused
	require.Error(t, stack.producer.Start(context.Background()))

	// Empty blocks still advance the chain
	require.Eventually(t, func() bool {
		height, err := stack.ledger.Height()
		require.NoError(t, err)
		return height >= 3
	}, 5*time.Second, 10*time.Millisecond)

	stack.producer.Stop()
	assert.False(t, stack.producer.IsRunning())
	heightAtStop, err := stack.ledger.Height()
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	height, err := stack.ledger.Height()
	require.NoError(t, err)
	assert.Equal(t, heightAtStop, height)
	// Stop is idempotent, and the producer can be restarted
	stack.producer.Stop()
	require.NoError(t, stack.producer.Start(context.Background()))
	stack.producer.Stop()
}

func TestProducerIncludesRegistrations(t *testing.T) {
	stack := newTestStack(t, 10*time.Millisecond)
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	reg := chatRegistration(t, "produced", pub)
	txId, err := stack.mempool.AddRegistration(reg)
	require.NoError(t, err)

	require.NoError(t, stack.producer.Start(context.Background()))
	require.Eventually(t, func() bool {
		record, err := stack.ledger.Lookup(
			names.Chat,
			names.NameToHash("produced"),
		)
		require.NoError(t, err)
		return record != nil
	}, 5*time.Second, 10*time.Millisecond)

	record, err := stack.ledger.Lookup(names.Chat, names.NameToHash("produced"))
	require.NoError(t, err)
	assert.Equal(t, txId, record.TxID)
	assert.Equal(t, []byte(pub), record.Owner)

	// The applied registration has left the pool
	require.Eventually(t, func() bool {
		return len(stack.mempool.Registrations()) == 0
	}, 5*time.Second, 10*time.Millisecond)

	// The archived payload round-trips through the resolver
	value, err := stack.ledger.Resolve(names.Chat, "produced", record.RegisterHeight)
	require.NoError(t, err)
	assert.Equal(t, byte(0x05), value.Bytes()[0])
}

func TestProducerDropsRejected(t *testing.T) {
	stack := newTestStack(t, 10*time.Millisecond)
	pubA, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pubB, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	// Both claims pass pool validation while neither is on chain yet. The
	// block can only apply one; the loser must not linger in the pool.
	_, err = stack.mempool.AddRegistration(chatRegistration(t, "contested", pubA))
	require.NoError(t, err)
	_, err = stack.mempool.AddRegistration(chatRegistration(t, "contested", pubB))
	require.NoError(t, err)

	require.NoError(t, stack.producer.Start(context.Background()))
	require.Eventually(t, func() bool {
		return len(stack.mempool.Registrations()) == 0
	}, 5*time.Second, 10*time.Millisecond)

	record, err := stack.ledger.Lookup(names.Chat, names.NameToHash("contested"))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, []byte(pubA), record.Owner)
}
