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

package blob

import (
	"fmt"
	"log/slog"

	badgerstore "github.com/blinklabs-io/fennec/database/plugin/blob/badger"
	"github.com/blinklabs-io/fennec/database/types"
	"github.com/prometheus/client_golang/prometheus"
)

type BlobStore interface {
	// Database
	Close() error
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	NewTransaction(bool) types.Txn

	// Blobs
	Get(types.Txn, []byte) ([]byte, error)
	Set(types.Txn, []byte, []byte) error
	Delete(types.Txn, []byte) error
	NewIterator(types.Txn, types.BlobIteratorOptions) types.BlobIterator
}

// New returns the blob store plugin selected by name. The store is ready
// for use when this returns without error. A zero blobCacheSize means the
// plugin default
func New(
	pluginName, dataDir string,
	blobCacheSize uint64,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (BlobStore, error) {
	switch pluginName {
	case "badger", "":
		opts := []badgerstore.BlobStoreBadgerOptionFunc{
			badgerstore.WithDataDir(dataDir),
			badgerstore.WithLogger(logger),
			badgerstore.WithPromRegistry(promRegistry),
		}
		if blobCacheSize > 0 {
			opts = append(opts, badgerstore.WithBlockCacheSize(blobCacheSize))
		}
		store, err := badgerstore.New(opts...)
		if err != nil {
			return nil, err
		}
		if err := store.Start(); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob plugin: %s", pluginName)
	}
}
