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
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/fennec/network"
	"github.com/prometheus/client_golang/prometheus"
)

// runMode constants for operational mode configuration
const (
	runModeServe = "serve"
	runModeDev   = "dev"
)

type Config struct {
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	dataDir         string
	blobPlugin      string
	metadataPlugin  string
	networkName     string
	runMode         string
	startHash       []byte
	network         network.Network
	mempoolCapacity int64
	startHeight     uint64
	shutdownTimeout time.Duration
	tracing         bool
	tracingStdout   bool
}

// configPopulateNetwork uses the named network (if specified) to populate
// the network parameters (block interval, wallet prefix)
func (n *Node) configPopulateNetwork() error {
	if n.config.networkName != "" {
		tmpNetwork, ok := network.NetworkByName(n.config.networkName)
		if !ok {
			return fmt.Errorf("unknown network name: %s", n.config.networkName)
		}
		n.config.network = tmpNetwork
	}
	return nil
}

// isDevMode returns true if running in development mode
func (c *Config) isDevMode() bool {
	return c.runMode == runModeDev
}

func (n *Node) configValidate() error {
	if n.config.network.Name == "" {
		return fmt.Errorf("no network specified")
	}
	switch n.config.runMode {
	case "", runModeServe, runModeDev:
	default:
		return fmt.Errorf("invalid run mode: %q", n.config.runMode)
	}
	if n.config.mempoolCapacity < 0 {
		return fmt.Errorf(
			"invalid mempool capacity: %d",
			n.config.mempoolCapacity,
		)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new fennec config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithNetwork specifies the named network to operate on. This will automatically set the appropriate network parameters
func WithNetwork(networkName string) ConfigOptionFunc {
	return func(c *Config) {
		c.networkName = networkName
	}
}

// WithNetworkConfig specifies the network parameters directly. This will override any named network specified
func WithNetworkConfig(net network.Network) ConfigOptionFunc {
	return func(c *Config) {
		c.network = net
		c.networkName = ""
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithMempoolCapacity sets the mempool capacity (in bytes)
func WithMempoolCapacity(capacity int64) ConfigOptionFunc {
	return func(c *Config) {
		c.mempoolCapacity = capacity
	}
}

// WithRunMode sets the operational mode ("serve" or "dev").
// "dev" mode produces blocks locally from the pending registration pool.
func WithRunMode(mode string) ConfigOptionFunc {
	return func(c *Config) {
		c.runMode = mode
	}
}

// WithStartPosition specifies the checkpoint position used when
// initializing a fresh ledger database. An existing database resumes
// from its stored checkpoint and ignores this.
func WithStartPosition(height uint64, hash []byte) ConfigOptionFunc {
	return func(c *Config) {
		c.startHeight = height
		c.startHash = hash
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout writes spans to stdout instead of the OTLP endpoint. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}
