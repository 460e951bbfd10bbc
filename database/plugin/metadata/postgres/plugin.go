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

package postgres

import (
	"sync"

	"github.com/blinklabs-io/fennec/database/plugin"
)

// Connection defaults. There is no default password, credentials must come
// from the operator
const (
	defaultHost     = "localhost"
	defaultPort     = uint64(5432)
	defaultUser     = "postgres"
	defaultDatabase = "fennec"
	defaultSSLMode  = "disable"
	defaultTimeZone = "UTC"
)

var (
	cmdlineOptions struct {
		host     string
		user     string
		password string
		database string
		sslMode  string
		timeZone string
		dsn      string
		port     uint64
	}
	cmdlineOptionsMutex sync.RWMutex
)

// Register plugin
func init() {
	cmdlineOptions.host = defaultHost
	cmdlineOptions.port = defaultPort
	cmdlineOptions.user = defaultUser
	cmdlineOptions.database = defaultDatabase
	cmdlineOptions.sslMode = defaultSSLMode
	cmdlineOptions.timeZone = defaultTimeZone
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeMetadata,
			Name:               "postgres",
			Description:        "Postgres relational database",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "host",
					Description:  "Postgres host",
					Type:         plugin.PluginOptionTypeString,
					DefaultValue: defaultHost,
					Dest:         &cmdlineOptions.host,
				},
				{
					Name:         "port",
					Description:  "Postgres port",
					Type:         plugin.PluginOptionTypeUint,
					DefaultValue: defaultPort,
					Dest:         &cmdlineOptions.port,
				},
				{
					Name:         "user",
					Description:  "Postgres user",
					Type:         plugin.PluginOptionTypeString,
					DefaultValue: defaultUser,
					Dest:         &cmdlineOptions.user,
				},
				{
					Name:         "password",
					Description:  "Postgres password (required)",
					Type:         plugin.PluginOptionTypeString,
					DefaultValue: "",
					Dest:         &cmdlineOptions.password,
				},
				{
					Name:         "database",
					Description:  "Postgres database name",
					Type:         plugin.PluginOptionTypeString,
					DefaultValue: defaultDatabase,
					Dest:         &cmdlineOptions.database,
				},
				{
					Name:         "ssl-mode",
					Description:  "Postgres sslmode",
					Type:         plugin.PluginOptionTypeString,
					DefaultValue: defaultSSLMode,
					Dest:         &cmdlineOptions.sslMode,
				},
				{
					Name:         "timezone",
					Description:  "Postgres TimeZone",
					Type:         plugin.PluginOptionTypeString,
					DefaultValue: defaultTimeZone,
					Dest:         &cmdlineOptions.timeZone,
				},
				{
					Name:         "dsn",
					Description:  "Full Postgres DSN (overrides other options when set)",
					Type:         plugin.PluginOptionTypeString,
					DefaultValue: "",
					Dest:         &cmdlineOptions.dsn,
				},
			},
		},
	)
}

// CmdlineOptionFuncs builds option funcs from the current cmdline option
// values, which may have been populated from flags, environment variables,
// or the config file
func CmdlineOptionFuncs() []PostgresOptionFunc {
	cmdlineOptionsMutex.RLock()
	defer cmdlineOptionsMutex.RUnlock()
	return []PostgresOptionFunc{
		WithHost(cmdlineOptions.host),
		WithPort(uint(cmdlineOptions.port)),
		WithUser(cmdlineOptions.user),
		WithPassword(cmdlineOptions.password),
		WithDatabase(cmdlineOptions.database),
		WithSSLMode(cmdlineOptions.sslMode),
		WithTimeZone(cmdlineOptions.timeZone),
		WithDSN(cmdlineOptions.dsn),
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
