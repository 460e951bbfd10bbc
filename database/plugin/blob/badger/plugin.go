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

package badger

import (
	"sync"

	"github.com/blinklabs-io/fennec/database/plugin"
)

// Default badger cache sizes (bytes)
const (
	DefaultBlockCacheSize = 805306368 // 768MB
	DefaultIndexCacheSize = 268435456 // 256MB
)

const defaultDataDir = ".fennec"

var (
	cmdlineOptions struct {
		dataDir        string
		blockCacheSize uint64
		indexCacheSize uint64
		gcEnabled      bool
	}
	cmdlineOptionsMutex sync.RWMutex
)

// Register plugin
func init() {
	cmdlineOptions.dataDir = defaultDataDir
	cmdlineOptions.blockCacheSize = DefaultBlockCacheSize
	cmdlineOptions.indexCacheSize = DefaultIndexCacheSize
	cmdlineOptions.gcEnabled = true
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeBlob,
			Name:               "badger",
			Description:        "Badger local key-value payload archive",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "data-dir",
					Description:  "Directory for the payload archive (empty runs in memory)",
					Type:         plugin.PluginOptionTypeString,
					DefaultValue: defaultDataDir,
					Dest:         &cmdlineOptions.dataDir,
				},
				{
					Name:         "block-cache-size",
					Description:  "Badger block cache size in bytes",
					Type:         plugin.PluginOptionTypeUint,
					DefaultValue: uint64(DefaultBlockCacheSize),
					Dest:         &cmdlineOptions.blockCacheSize,
				},
				{
					Name:         "index-cache-size",
					Description:  "Badger index cache size in bytes",
					Type:         plugin.PluginOptionTypeUint,
					DefaultValue: uint64(DefaultIndexCacheSize),
					Dest:         &cmdlineOptions.indexCacheSize,
				},
				{
					Name:         "gc",
					Description:  "Enable the value log GC loop",
					Type:         plugin.PluginOptionTypeBool,
					DefaultValue: true,
					Dest:         &cmdlineOptions.gcEnabled,
				},
			},
		},
	)
}

// CmdlineOptionFuncs builds option funcs from the current cmdline option
// values, which may have been populated from flags, environment variables,
// or the config file
func CmdlineOptionFuncs() []BlobStoreBadgerOptionFunc {
	cmdlineOptionsMutex.RLock()
	defer cmdlineOptionsMutex.RUnlock()
	return []BlobStoreBadgerOptionFunc{
		WithDataDir(cmdlineOptions.dataDir),
		WithBlockCacheSize(cmdlineOptions.blockCacheSize),
		WithIndexCacheSize(cmdlineOptions.indexCacheSize),
		WithGc(cmdlineOptions.gcEnabled),
	}
}

func NewFromCmdlineOptions() plugin.Plugin {
	p, err := New(CmdlineOptionFuncs()...)
	if err != nil {
		// Return a plugin that defers the error to Start()
		return plugin.NewErrorPlugin(err)
	}
	return p
}
