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
	"github.com/blinklabs-io/fennec/database/types"
)

// GetPayload returns the archived registration payload for the given
// transaction ID. Returns types.ErrBlobKeyNotFound when no payload has
// been archived for the transaction.
func GetPayload(db *Database, txId []byte) ([]byte, error) {
	return db.GetPayload(txId, nil)
}

// GetPayload returns the archived registration payload for the given
// transaction ID
func (d *Database) GetPayload(txId []byte, txn *Txn) ([]byte, error) {
	if txn == nil {
		txn = NewBlobOnlyTxn(d, false)
		defer txn.Release()
	}
	return d.blob.Get(txn.Blob(), types.PayloadBlobKey(txId))
}

// SetPayload archives the raw registration payload for the given
// transaction ID
func SetPayload(db *Database, txId []byte, payload []byte) error {
	return db.SetPayload(txId, payload, nil)
}

// SetPayload archives the raw registration payload for the given
// transaction ID
func (d *Database) SetPayload(txId []byte, payload []byte, txn *Txn) error {
	if txn == nil {
		txn = NewBlobOnlyTxn(d, true)
		return txn.Do(func(txn *Txn) error {
			return d.SetPayload(txId, payload, txn)
		})
	}
	return d.blob.Set(txn.Blob(), types.PayloadBlobKey(txId), payload)
}

// DeletePayload removes the archived registration payload for the given
// transaction ID
func DeletePayload(db *Database, txId []byte) error {
	return db.DeletePayload(txId, nil)
}

// DeletePayload removes the archived registration payload for the given
// transaction ID
func (d *Database) DeletePayload(txId []byte, txn *Txn) error {
	if txn == nil {
		txn = NewBlobOnlyTxn(d, true)
		return txn.Do(func(txn *Txn) error {
			return d.DeletePayload(txId, txn)
		})
	}
	return d.blob.Delete(txn.Blob(), types.PayloadBlobKey(txId))
}
