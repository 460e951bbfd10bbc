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

package fennec

import (
	"testing"
	"time"

	"github.com/blinklabs-io/fennec/network"
	"github.com/stretchr/testify/assert"
)

func TestRunModeValid(t *testing.T) {
	tests := []struct {
		mode  string
		valid bool
	}{
		{runModeServe, true},
		{runModeDev, true},
		{"", true},
		{"invalid", false},
	}
	for _, tt := range tests {
		n := &Node{
			config: NewConfig(
				WithNetwork("devnet"),
				WithRunMode(tt.mode),
			),
		}
		assert.NoError(t, n.configPopulateNetwork(), "mode=%q", tt.mode)
		err := n.configValidate()
		if tt.valid {
			assert.NoError(t, err, "mode=%q", tt.mode)
		} else {
			assert.Error(t, err, "mode=%q", tt.mode)
		}
	}
}

func TestIsDevMode(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.isDevMode())

	WithRunMode(runModeServe)(cfg)
	assert.False(t, cfg.isDevMode())

	WithRunMode(runModeDev)(cfg)
	assert.True(t, cfg.isDevMode())
}

func TestConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithDatabasePath(".fennec"),
		WithBlobPlugin("badger"),
		WithMetadataPlugin("sqlite"),
		WithNetwork("testnet"),
		WithMempoolCapacity(2 * 1024 * 1024),
		WithShutdownTimeout(5 * time.Second),
		WithStartPosition(42, []byte{0xab, 0xcd}),
		WithTracing(true),
		WithTracingStdout(true),
	)

	// Default logger is always populated
	assert.NotNil(t, cfg.logger)
	assert.Equal(t, ".fennec", cfg.dataDir)
	assert.Equal(t, "badger", cfg.blobPlugin)
	assert.Equal(t, "sqlite", cfg.metadataPlugin)
	assert.Equal(t, "testnet", cfg.networkName)
	assert.Equal(t, int64(2*1024*1024), cfg.mempoolCapacity)
	assert.Equal(t, 5*time.Second, cfg.shutdownTimeout)
	assert.Equal(t, uint64(42), cfg.startHeight)
	assert.Equal(t, []byte{0xab, 0xcd}, cfg.startHash)
	assert.True(t, cfg.tracing)
	assert.True(t, cfg.tracingStdout)
}

func TestWithNetworkConfig(t *testing.T) {
	cfg := NewConfig(
		WithNetwork("mainnet"),
		WithNetworkConfig(network.Devnet),
	)

	// Explicit network parameters override the named network
	assert.Equal(t, network.Devnet, cfg.network)
	assert.Equal(t, "", cfg.networkName)
}

func TestNewPopulatesNetwork(t *testing.T) {
	n, err := New(
		NewConfig(
			WithNetwork("devnet"),
		),
	)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = n.Stop() })
	assert.Equal(t, network.Devnet.Id, n.config.network.Id)
	assert.Equal(t, network.Devnet.BlockInterval, n.config.network.BlockInterval)
}

func TestNewRejectsUnknownNetwork(t *testing.T) {
	_, err := New(
		NewConfig(
			WithNetwork("nonet"),
		),
	)
	assert.ErrorContains(t, err, "unknown network name")
}

func TestNewRequiresNetwork(t *testing.T) {
	_, err := New(NewConfig())
	assert.ErrorContains(t, err, "no network specified")
}
