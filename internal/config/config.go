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

package config

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"github.com/blinklabs-io/fennec/database/plugin"
	"github.com/blinklabs-io/fennec/network"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "fennec.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

// RunMode represents the operational mode of the fennec node
type RunMode string

const (
	RunModeServe RunMode = "serve" // Standing node fed by a host (default)
	RunModeDev   RunMode = "dev"   // Development mode (local block production)
)

// Valid returns true if the RunMode is a known valid mode
func (m RunMode) Valid() bool {
	switch m {
	case RunModeServe, RunModeDev, "":
		return true
	default:
		return false
	}
}

// IsDevMode returns true if the mode enables development behaviors
// (produce blocks locally from the registration pool)
func (m RunMode) IsDevMode() bool {
	return m == RunModeDev
}

type tempConfig struct {
	Config   *Config                   `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	MetadataPlugin  string  `yaml:"metadataPlugin"  envconfig:"FENNEC_DATABASE_METADATA_PLUGIN"`
	BlobPlugin      string  `yaml:"blobPlugin"      envconfig:"FENNEC_DATABASE_BLOB_PLUGIN"`
	DatabasePath    string  `yaml:"databasePath"                                               split_words:"true"`
	BindAddr        string  `yaml:"bindAddr"                                                   split_words:"true"`
	ShutdownTimeout string  `yaml:"shutdownTimeout"                                            split_words:"true"`
	Network         string  `yaml:"network"`
	StartHash       string  `yaml:"startHash"                                                  split_words:"true"`
	MempoolCapacity int64   `yaml:"mempoolCapacity"                                            split_words:"true"`
	StartHeight     uint64  `yaml:"startHeight"                                                split_words:"true"`
	MetricsPort     uint    `yaml:"metricsPort"                                                split_words:"true"`
	Tracing         bool    `yaml:"tracing"`
	TracingStdout   bool    `yaml:"tracingStdout"                                              split_words:"true"`
	RunMode         RunMode `yaml:"runMode"         envconfig:"FENNEC_RUN_MODE"`
}

var globalConfig = &Config{
	MempoolCapacity: 1048576,
	BindAddr:        "0.0.0.0",
	DatabasePath:    ".fennec",
	Network:         "mainnet",
	MetricsPort:     22025,
	StartHeight:     0,
	StartHash:       "",
	BlobPlugin:      DefaultBlobPlugin,
	MetadataPlugin:  DefaultMetadataPlugin,
	RunMode:         RunModeServe,
	ShutdownTimeout: DefaultShutdownTimeout,
}

// pluginSection converts one raw database plugin section from the config
// file into the registry config shape, extracting a "plugin" name override
// when present. Nested maps come out of YAML as either map[string]any or
// map[any]any depending on the decoder path, so both are accepted
func pluginSection(
	section map[string]any,
	kind string,
) (string, map[string]map[string]any) {
	pluginName := ""
	if pluginVal, exists := section["plugin"]; exists {
		if name, ok := pluginVal.(string); ok {
			pluginName = name
			delete(section, "plugin")
		}
	}
	sectionConfig := make(map[string]map[string]any)
	for k, v := range section {
		switch val := v.(type) {
		case map[string]any:
			sectionConfig[k] = val
		case map[any]any:
			stringAnyMap := make(map[string]any)
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			sectionConfig[k] = stringAnyMap
		default:
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping %s config entry %q: expected map, got %T\n",
				kind,
				k,
				v,
			)
		}
	}
	return pluginName, sectionConfig
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.fennec/fennec.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".fennec", "fennec.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/fennec/fennec.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/fennec/fennec.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		// First unmarshal into temp config to handle plugin sections
		var tempCfg tempConfig
		err = yaml.Unmarshal(buf, &tempCfg)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}

		// If config section exists, use it for main config
		if tempCfg.Config != nil {
			// Overlay config values onto existing defaults
			configBytes, err := yaml.Marshal(tempCfg.Config)
			if err != nil {
				return nil, fmt.Errorf("error re-marshalling config: %w", err)
			}
			err = yaml.Unmarshal(configBytes, globalConfig)
			if err != nil {
				return nil, fmt.Errorf("error parsing config section: %w", err)
			}
		} else {
			// Otherwise unmarshal the whole file as main config (backward compatibility)
			err = yaml.Unmarshal(buf, globalConfig)
			if err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}

		// Process plugin configurations
		pluginConfig := make(map[string]map[string]map[string]any)
		if tempCfg.Blob != nil {
			pluginConfig["blob"] = tempCfg.Blob
		}
		if tempCfg.Metadata != nil {
			pluginConfig["metadata"] = tempCfg.Metadata
		}
		// Handle database section if present
		if tempCfg.Database != nil {
			if tempCfg.Database.Blob != nil {
				pluginName, blobConfig := pluginSection(
					tempCfg.Database.Blob,
					"blob",
				)
				if pluginName != "" {
					globalConfig.BlobPlugin = pluginName
				}
				// Merge with existing blob config instead of overwriting
				if pluginConfig["blob"] == nil {
					pluginConfig["blob"] = blobConfig
				} else {
					maps.Copy(pluginConfig["blob"], blobConfig)
				}
			}
			if tempCfg.Database.Metadata != nil {
				pluginName, metadataConfig := pluginSection(
					tempCfg.Database.Metadata,
					"metadata",
				)
				if pluginName != "" {
					globalConfig.MetadataPlugin = pluginName
				}
				// Merge with existing metadata config instead of overwriting
				if pluginConfig["metadata"] == nil {
					pluginConfig["metadata"] = metadataConfig
				} else {
					maps.Copy(pluginConfig["metadata"], metadataConfig)
				}
			}
		}
		if len(pluginConfig) > 0 {
			err = plugin.ProcessConfig(pluginConfig)
			if err != nil {
				return nil, fmt.Errorf(
					"error processing plugin config: %w",
					err,
				)
			}
		}
	}
	// Process environment variables
	err := envconfig.Process("fennec", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	// Process plugin environment variables
	err = plugin.ProcessEnvVars()
	if err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}

	// Validate and default RunMode
	if !globalConfig.RunMode.Valid() {
		return nil, fmt.Errorf(
			"invalid runMode: %q (must be 'serve' or 'dev')",
			globalConfig.RunMode,
		)
	}
	if globalConfig.RunMode == "" {
		globalConfig.RunMode = RunModeServe
	}

	// Validate the named network
	if _, ok := network.NetworkByName(globalConfig.Network); !ok {
		return nil, fmt.Errorf("unknown network: %s", globalConfig.Network)
	}

	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}
