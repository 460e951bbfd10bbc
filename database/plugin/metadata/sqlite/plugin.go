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

package sqlite

import (
	"sync"

	"github.com/blinklabs-io/fennec/database/plugin"
)

const defaultDataDir = ".fennec"

var (
	cmdlineOptions struct {
		dataDir string
	}
	cmdlineOptionsMutex sync.RWMutex
)

// Register plugin
func init() {
	cmdlineOptions.dataDir = defaultDataDir
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeMetadata,
			Name:               "sqlite",
			Description:        "SQLite relational database (default)",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "data-dir",
					Description:  "Directory for the mapping database (empty runs in memory)",
					Type:         plugin.PluginOptionTypeString,
					DefaultValue: defaultDataDir,
					Dest:         &cmdlineOptions.dataDir,
				},
			},
		},
	)
}

// CmdlineOptionFuncs builds option funcs from the current cmdline option
// values, which may have been populated from flags, environment variables,
// or the config file
func CmdlineOptionFuncs() []SqliteOptionFunc {
	cmdlineOptionsMutex.RLock()
	defer cmdlineOptionsMutex.RUnlock()
	return []SqliteOptionFunc{
		WithDataDir(cmdlineOptions.dataDir),
	}
}

func NewFromCmdlineOptions() plugin.Plugin {
	// Logger and promRegistry will use defaults if nil
	p, err := NewWithOptions(CmdlineOptionFuncs()...)
	if err != nil {
		// Return a plugin that defers the error to Start()
		return plugin.NewErrorPlugin(err)
	}
	return p
}
