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
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOptionSetters(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()

	tests := []struct {
		name   string
		option PostgresOptionFunc
		check  func(*MetadataStorePostgres) bool
	}{
		{
			"host",
			WithHost("db.local"),
			func(m *MetadataStorePostgres) bool { return m.host == "db.local" },
		},
		{
			"port",
			WithPort(5433),
			func(m *MetadataStorePostgres) bool { return m.port == 5433 },
		},
		{
			"user",
			WithUser("owner"),
			func(m *MetadataStorePostgres) bool { return m.user == "owner" },
		},
		{
			"password",
			WithPassword("secret"),
			func(m *MetadataStorePostgres) bool { return m.password == "secret" },
		},
		{
			"database",
			WithDatabase("names"),
			func(m *MetadataStorePostgres) bool { return m.database == "names" },
		},
		{
			"ssl-mode",
			WithSSLMode("require"),
			func(m *MetadataStorePostgres) bool { return m.sslMode == "require" },
		},
		{
			"timezone",
			WithTimeZone("America/Chicago"),
			func(m *MetadataStorePostgres) bool { return m.timeZone == "America/Chicago" },
		},
		{
			"dsn",
			WithDSN("host=db.local dbname=names"),
			func(m *MetadataStorePostgres) bool { return m.dsn == "host=db.local dbname=names" },
		},
		{
			"logger",
			WithLogger(logger),
			func(m *MetadataStorePostgres) bool { return m.logger == logger },
		},
		{
			"prom-registry",
			WithPromRegistry(registry),
			func(m *MetadataStorePostgres) bool { return m.promRegistry == registry },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m MetadataStorePostgres
			tt.option(&m)
			if !tt.check(&m) {
				t.Errorf("option %s was not applied", tt.name)
			}
		})
	}
}

func TestNewWithOptionsDefaults(t *testing.T) {
	m, err := NewWithOptions()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if m.host != "localhost" || m.port != 5432 {
		t.Errorf("unexpected default endpoint %s:%d", m.host, m.port)
	}
	if m.user != "postgres" {
		t.Errorf("unexpected default user %q", m.user)
	}
	if m.database != "fennec" {
		t.Errorf("unexpected default database %q", m.database)
	}
	if m.sslMode != "disable" {
		t.Errorf("unexpected default sslmode %q", m.sslMode)
	}
	if m.timeZone != "UTC" {
		t.Errorf("unexpected default TimeZone %q", m.timeZone)
	}
	if m.logger == nil {
		t.Error("default logger not set")
	}
}
