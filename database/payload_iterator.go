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

package database

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/fennec/database/types"
)

const (
	// payloadIteratorBatchSize controls how many payload keys are fetched
	// per batch from the blob iterator. This avoids loading the entire
	// payload archive into memory while keeping I/O efficient.
	payloadIteratorBatchSize = 1000
)

// PayloadIterator iterates archived registration payloads from the blob
// store. Payload keys are formatted as "rp" + txid, so iteration order is
// by transaction ID, not by registration height.
//
// The iterator fetches payload keys in batches to avoid holding a blob
// transaction open across the whole archive, and retrieves payload bytes
// on demand for each call to Next.
type PayloadIterator struct {
	db *Database

	// internal state
	mu        sync.Mutex
	batch     [][]byte
	batchIdx  int
	exhausted bool
	closed    bool

	// resumeKey is the blob key to seek past when fetching the next batch.
	// nil means start from the beginning.
	resumeKey []byte
}

// Payloads returns an iterator over all archived registration payloads
func (d *Database) Payloads() *PayloadIterator {
	return &PayloadIterator{
		db: d,
	}
}

// PayloadResult holds the data returned by PayloadIterator.Next
type PayloadResult struct {
	TxId    []byte
	Payload []byte
}

// Next returns the next archived payload along with its transaction ID.
// When iteration is complete, it returns (nil, nil). Payloads whose bytes
// cannot be fetched from the blob store are skipped with a warning log.
func (it *PayloadIterator) Next() (*PayloadResult, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return nil, nil
	}

	for {
		// Refill batch if needed
		if it.batchIdx >= len(it.batch) {
			if it.exhausted {
				return nil, nil
			}
			if err := it.fetchBatch(); err != nil {
				return nil, err
			}
			if len(it.batch) == 0 {
				it.exhausted = true
				return nil, nil
			}
		}

		key := it.batch[it.batchIdx]
		it.batchIdx++

		txId := key[len(types.PayloadBlobKeyPrefix):]

		payload, fetchErr := it.fetchPayload(key)
		if fetchErr != nil {
			if errors.Is(fetchErr, types.ErrBlobKeyNotFound) {
				it.db.logger.Warn(
					"payload iterator: skipping deleted payload",
					"tx_id", fmt.Sprintf("%x", txId),
				)
				continue
			}
			return nil, fmt.Errorf(
				"fetching payload %x: %w",
				txId, fetchErr,
			)
		}

		return &PayloadResult{
			TxId:    txId,
			Payload: payload,
		}, nil
	}
}

// Close releases any resources held by the iterator. It is safe to call
// Close multiple times.
func (it *PayloadIterator) Close() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.closed = true
	it.batch = nil
	it.resumeKey = nil
}

// fetchBatch retrieves the next batch of payload keys from the blob store.
// Must be called with it.mu held.
func (it *PayloadIterator) fetchBatch() error {
	blob := it.db.Blob()
	if blob == nil {
		return types.ErrBlobStoreUnavailable
	}

	txn := blob.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck

	prefix := []byte(types.PayloadBlobKeyPrefix)
	iterOpts := types.BlobIteratorOptions{
		Prefix: prefix,
	}
	blobIter := blob.NewIterator(txn, iterOpts)
	if blobIter == nil {
		return errors.New("blob iterator is nil")
	}
	defer blobIter.Close()

	// Determine seek position
	seekKey := prefix
	if it.resumeKey != nil {
		// Seek past the last key we processed
		seekKey = it.resumeKey
	}

	batch := make([][]byte, 0, payloadIteratorBatchSize)
	resuming := it.resumeKey != nil

	for blobIter.Seek(seekKey); blobIter.ValidForPrefix(prefix); blobIter.Next() {
		item := blobIter.Item()
		if item == nil {
			continue
		}
		key := item.Key()
		if key == nil {
			continue
		}

		// When resuming, skip the exact key we left off at. If resumeKey
		// was deleted under us, Seek lands on the next key which should
		// be included, so we only continue on an exact match.
		if resuming {
			resuming = false
			if bytes.Equal(key, it.resumeKey) {
				continue
			}
		}

		keyCopy := make([]byte, len(key))
		copy(keyCopy, key)

		batch = append(batch, keyCopy)
		if len(batch) >= payloadIteratorBatchSize {
			break
		}
	}

	if err := blobIter.Err(); err != nil {
		return fmt.Errorf("scanning payload keys: %w", err)
	}

	it.batch = batch
	it.batchIdx = 0

	if len(batch) > 0 {
		it.resumeKey = batch[len(batch)-1]
	}

	// If we got fewer than a full batch, we've exhausted the range
	if len(batch) < payloadIteratorBatchSize {
		it.exhausted = true
	}

	return nil
}

// fetchPayload retrieves the payload bytes for a blob key.
// Must be called with it.mu held.
func (it *PayloadIterator) fetchPayload(key []byte) ([]byte, error) {
	blob := it.db.Blob()
	if blob == nil {
		return nil, types.ErrBlobStoreUnavailable
	}

	txn := blob.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck

	return blob.Get(txn, key)
}

// CountPayloads returns the number of archived registration payloads
func (d *Database) CountPayloads() (int64, error) {
	var count int64
	iter := d.Payloads()
	defer iter.Close()
	for {
		res, err := iter.Next()
		if err != nil {
			return count, err
		}
		if res == nil {
			break
		}
		count++
	}
	return count, nil
}
