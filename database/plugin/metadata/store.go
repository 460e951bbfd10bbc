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

package metadata

import (
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/fennec/database/models"
	"github.com/blinklabs-io/fennec/database/plugin/metadata/mysql"
	"github.com/blinklabs-io/fennec/database/plugin/metadata/postgres"
	"github.com/blinklabs-io/fennec/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/fennec/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Owners
	SetOwner(
		[]byte, // publicKey
		types.Txn,
	) (*models.Owner, error)
	GetOwner(
		[]byte, // publicKey
		types.Txn,
	) (*models.Owner, error)
	GetOwnerById(
		uint, // ownerId
		types.Txn,
	) (*models.Owner, error)
	DeleteOwnersWithoutMappings(types.Txn) (int64, error)
	CountOwners(types.Txn) (int64, error)

	// Mappings
	SetMapping(*models.Mapping, types.Txn) error
	GetMappingHead(
		uint16, // mappingType
		[]byte, // nameHash
		types.Txn,
	) (*models.Mapping, error)
	GetMappings(
		[]uint16, // mappingTypes
		[]byte, // nameHash
		types.Txn,
	) ([]models.Mapping, error)
	GetMappingByTxId(
		[]byte, // txId
		types.Txn,
	) (*models.Mapping, error)
	GetMappingsByOwnerKeys(
		[][]byte, // ownerKeys
		types.Txn,
	) ([]models.Mapping, error)
	GetMappingsFromHeight(
		uint64, // height
		types.Txn,
	) ([]models.Mapping, error)
	DeleteMappingsFromHeight(
		uint64, // height
		types.Txn,
	) (int64, error)
	CountMappings(types.Txn) (int64, error)

	// Settings
	GetSettings(types.Txn) (*models.Settings, error)
	SetSettings(
		uint64, // topHeight
		[]byte, // topHash
		uint64, // version
		types.Txn,
	) error
}

// New returns the metadata store plugin selected by name. The store is
// ready for use when this returns without error
func New(
	pluginName, dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (MetadataStore, error) {
	switch pluginName {
	case "sqlite", "":
		store, err := sqlite.NewWithOptions(
			sqlite.WithDataDir(dataDir),
			sqlite.WithLogger(logger),
			sqlite.WithPromRegistry(promRegistry),
		)
		if err != nil {
			return nil, err
		}
		if err := store.Start(); err != nil {
			return nil, err
		}
		return store, nil
	case "mysql":
		// Connection options come from cmdline flags, env vars, or the
		// config file rather than the data directory
		opts := append(
			mysql.CmdlineOptionFuncs(),
			mysql.WithLogger(logger),
			mysql.WithPromRegistry(promRegistry),
		)
		store, err := mysql.NewWithOptions(opts...)
		if err != nil {
			return nil, err
		}
		if err := store.Start(); err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		opts := append(
			postgres.CmdlineOptionFuncs(),
			postgres.WithLogger(logger),
			postgres.WithPromRegistry(promRegistry),
		)
		store, err := postgres.NewWithOptions(opts...)
		if err != nil {
			return nil, err
		}
		if err := store.Start(); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown metadata plugin: %s", pluginName)
	}
}
