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
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/blinklabs-io/fennec/event"
	"github.com/blinklabs-io/fennec/ledger"
	"github.com/blinklabs-io/fennec/names"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/blake2b"
)

const (
	AddRegistrationEventType    event.EventType = "mempool.add_registration"
	RemoveRegistrationEventType event.EventType = "mempool.remove_registration"

	// revalidateInterval limits how often the full pool is revalidated
	// while blocks are arriving faster than we can keep up
	revalidateInterval = 30 * time.Second
)

type AddRegistrationEvent struct {
	Hash string
	Body []byte
	Type names.MappingType
}

type RemoveRegistrationEvent struct {
	Hash string
}

// MempoolRegistration is a pending registration waiting for block
// inclusion. TxID is the BLAKE2b-256 hash of the canonical payload
// encoding and doubles as the archive key once the payload lands in a
// block built from this pool.
type MempoolRegistration struct {
	LastSeen     time.Time
	Registration *names.Registration
	Hash         string
	Body         []byte
	TxID         names.Hash
}

// RegistrationValidator defines the validation the mempool runs before
// admitting a registration and again when the ledger advances.
type RegistrationValidator interface {
	ValidatePendingRegistration(reg *names.Registration) error
}

type MempoolConfig struct {
	PromRegistry    prometheus.Registerer
	Validator       RegistrationValidator
	Logger          *slog.Logger
	EventBus        *event.EventBus
	MempoolCapacity int64
}

type Mempool struct {
	config  MempoolConfig
	metrics struct {
		registrationsAdded  prometheus.Counter
		registrationsInPool prometheus.Gauge
		mempoolBytes        prometheus.Gauge
	}
	validator     RegistrationValidator
	logger        *slog.Logger
	eventBus      *event.EventBus
	registrations []*MempoolRegistration
	byHash        map[string]*MempoolRegistration
	done          chan struct{}
	stopOnce      sync.Once
	sync.RWMutex
}

type MempoolFullError struct {
	CurrentSize int
	RegSize     int
	Capacity    int64
}

func (e *MempoolFullError) Error() string {
	return fmt.Sprintf(
		"mempool full: current size=%d bytes, registration size=%d bytes, capacity=%d bytes",
		e.CurrentSize,
		e.RegSize,
		e.Capacity,
	)
}

func NewMempool(config MempoolConfig) *Mempool {
	m := &Mempool{
		eventBus:  config.EventBus,
		validator: config.Validator,
		byHash:    make(map[string]*MempoolRegistration),
		done:      make(chan struct{}),
		config:    config,
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		m.logger = config.Logger
	}
	// Subscribe to ledger events
	go m.processLedgerEvents()
	// Init metrics
	promautoFactory := promauto.With(config.PromRegistry)
	m.metrics.registrationsAdded = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "mempool_registrations_added_total",
			Help: "total registrations admitted to the mempool",
		},
	)
	m.metrics.registrationsInPool = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "mempool_registrations",
			Help: "current count of pooled registrations",
		},
	)
	m.metrics.mempoolBytes = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "mempool_bytes",
		Help: "current size of pooled registrations in bytes",
	})
	return m
}

// Stop terminates the ledger event subscription. The pool contents are
// left in place for inspection.
func (m *Mempool) Stop(_ context.Context) error {
	m.stopOnce.Do(func() {
		close(m.done)
	})
	return nil
}

// processLedgerEvents drops pooled registrations as the ledger applies
// them and revalidates the remainder as the chain advances, so entries
// invalidated by someone else's registration do not linger until a
// failed block inclusion.
func (m *Mempool) processLedgerEvents() {
	regSubId, regChan := m.eventBus.Subscribe(ledger.RegistrationEventType)
	updateSubId, updateChan := m.eventBus.Subscribe(ledger.UpdateEventType)
	blockSubId, blockChan := m.eventBus.Subscribe(ledger.BlockEventType)
	defer func() {
		m.eventBus.Unsubscribe(ledger.RegistrationEventType, regSubId)
		m.eventBus.Unsubscribe(ledger.UpdateEventType, updateSubId)
		m.eventBus.Unsubscribe(ledger.BlockEventType, blockSubId)
	}()
	var lastValidationTime time.Time
	for {
		select {
		case <-m.done:
			return
		case evt, ok := <-regChan:
			if !ok {
				return
			}
			m.removeApplied(evt)
		case evt, ok := <-updateChan:
			if !ok {
				return
			}
			m.removeApplied(evt)
		case _, ok := <-blockChan:
			if !ok {
				return
			}
			// Only revalidate once per interval when more blocks are waiting
			if time.Since(lastValidationTime) < revalidateInterval &&
				len(blockChan) > 0 {
				continue
			}
			lastValidationTime = time.Now()
			m.revalidate()
		}
	}
}

func (m *Mempool) removeApplied(evt event.Event) {
	regEvt, ok := evt.Data.(ledger.RegistrationEvent)
	if !ok {
		return
	}
	m.Lock()
	defer m.Unlock()
	if m.removeRegistration(regEvt.TxID.String()) {
		m.logger.Debug(
			"removed registration applied by ledger",
			"component", "mempool",
			"tx_hash", regEvt.TxID.String(),
		)
	}
}

func (m *Mempool) revalidate() {
	m.Lock()
	defer m.Unlock()
	// We iterate backward to avoid issues with shifting indexes when deleting
	for i := len(m.registrations) - 1; i >= 0; i-- {
		reg := m.registrations[i]
		if err := m.validator.ValidatePendingRegistration(reg.Registration); err != nil {
			m.removeRegistrationByIndex(i)
			m.logger.Debug(
				"removed registration after re-validation failure",
				"component", "mempool",
				"tx_hash", reg.Hash,
				"error", err,
			)
		}
	}
}

// AddRegistration validates a registration payload against the current
// ledger state and admits it to the pool. The payload's transaction id is
// derived from its canonical encoding.
func (m *Mempool) AddRegistration(reg *names.Registration) (names.Hash, error) {
	// Validate registration
	if err := m.validator.ValidatePendingRegistration(reg); err != nil {
		return names.Hash{}, err
	}
	// Build pool entry
	body, err := reg.MarshalBinary()
	if err != nil {
		return names.Hash{}, fmt.Errorf("failed to encode registration: %w", err)
	}
	txId := names.Hash(blake2b.Sum256(body))
	entry := MempoolRegistration{
		Hash:         txId.String(),
		TxID:         txId,
		Registration: reg,
		Body:         body,
		LastSeen:     time.Now(),
	}
	m.Lock()
	defer m.Unlock()
	// Update last seen for existing registration
	if existing, ok := m.byHash[entry.Hash]; ok {
		existing.LastSeen = time.Now()
		m.logger.Debug(
			"updated last seen for registration",
			"component", "mempool",
			"tx_hash", entry.Hash,
		)
		return txId, nil
	}
	// Enforce mempool capacity
	currentSize := 0
	for _, existing := range m.registrations {
		currentSize += len(existing.Body)
	}
	if currentSize+len(entry.Body) > int(m.config.MempoolCapacity) {
		return names.Hash{}, &MempoolFullError{
			CurrentSize: currentSize,
			RegSize:     len(entry.Body),
			Capacity:    m.config.MempoolCapacity,
		}
	}
	// Add registration record
	m.registrations = append(m.registrations, &entry)
	m.byHash[entry.Hash] = &entry
	m.logger.Debug(
		"added registration",
		"component", "mempool",
		"tx_hash", entry.Hash,
	)
	m.metrics.registrationsAdded.Inc()
	m.metrics.registrationsInPool.Inc()
	m.metrics.mempoolBytes.Add(float64(len(entry.Body)))
	// Generate event
	m.eventBus.Publish(
		AddRegistrationEventType,
		event.NewEvent(
			AddRegistrationEventType,
			AddRegistrationEvent{
				Hash: entry.Hash,
				Type: reg.Type,
				Body: entry.Body,
			},
		),
	)
	return txId, nil
}

func (m *Mempool) GetRegistration(hash string) (MempoolRegistration, bool) {
	m.RLock()
	defer m.RUnlock()
	ret, ok := m.byHash[hash]
	if !ok {
		return MempoolRegistration{}, false
	}
	return *ret, true
}

// Registrations returns a snapshot of the pool in insertion order.
func (m *Mempool) Registrations() []MempoolRegistration {
	m.RLock()
	defer m.RUnlock()
	ret := make([]MempoolRegistration, len(m.registrations))
	for i := range m.registrations {
		ret[i] = *m.registrations[i]
	}
	return ret
}

func (m *Mempool) RemoveRegistration(hash string) {
	m.Lock()
	defer m.Unlock()
	if m.removeRegistration(hash) {
		m.logger.Debug(
			"removed registration",
			"component", "mempool",
			"tx_hash", hash,
		)
	}
}

func (m *Mempool) removeRegistration(hash string) bool {
	if _, ok := m.byHash[hash]; !ok {
		return false
	}
	for idx, reg := range m.registrations {
		if reg.Hash == hash {
			return m.removeRegistrationByIndex(idx)
		}
	}
	return false
}

func (m *Mempool) removeRegistrationByIndex(idx int) bool {
	if idx >= len(m.registrations) {
		return false
	}
	reg := m.registrations[idx]
	m.registrations = slices.Delete(
		m.registrations,
		idx,
		idx+1,
	)
	delete(m.byHash, reg.Hash)
	m.metrics.registrationsInPool.Dec()
	m.metrics.mempoolBytes.Sub(float64(len(reg.Body)))
	// Generate event
	m.eventBus.Publish(
		RemoveRegistrationEventType,
		event.NewEvent(
			RemoveRegistrationEventType,
			RemoveRegistrationEvent{
				Hash: reg.Hash,
			},
		),
	)
	return true
}
