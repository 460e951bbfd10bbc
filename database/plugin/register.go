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

package plugin

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/pflag"
)

type PluginType int

const (
	PluginTypeBlob PluginType = iota
	PluginTypeMetadata
)

// PluginTypeName returns the name for a plugin type
func PluginTypeName(pluginType PluginType) string {
	switch pluginType {
	case PluginTypeBlob:
		return "blob"
	case PluginTypeMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = iota
	PluginOptionTypeBool
	PluginOptionTypeInt
	PluginOptionTypeUint
)

// PluginOption describes a single configurable option for a plugin. Dest
// must be a pointer matching the option type, and it receives values from
// cmdline flags, environment variables, and config file sections
type PluginOption struct {
	Dest         any
	DefaultValue any
	Name         string
	Description  string
	Type         PluginOptionType
}

// PluginEntry describes a registered plugin implementation
type PluginEntry struct {
	NewFromOptionsFunc func() Plugin
	Name               string
	Description        string
	Options            []PluginOption
	Type               PluginType
}

var (
	pluginEntries     []PluginEntry
	pluginEntriesLock sync.Mutex
)

// Register adds a plugin to the registry. It's usually called from an
// init() function in the plugin package
func Register(entry PluginEntry) {
	pluginEntriesLock.Lock()
	defer pluginEntriesLock.Unlock()
	pluginEntries = append(pluginEntries, entry)
}

// GetPlugins returns the registered plugins of the given type
func GetPlugins(pluginType PluginType) []PluginEntry {
	pluginEntriesLock.Lock()
	defer pluginEntriesLock.Unlock()
	ret := []PluginEntry{}
	for _, entry := range pluginEntries {
		if entry.Type == pluginType {
			ret = append(ret, entry)
		}
	}
	return ret
}

// GetPlugin creates a plugin instance from the registered entry matching the
// given type and name. It returns nil if no matching entry is found
func GetPlugin(pluginType PluginType, pluginName string) Plugin {
	pluginEntriesLock.Lock()
	defer pluginEntriesLock.Unlock()
	for _, entry := range pluginEntries {
		if entry.Type == pluginType && entry.Name == pluginName {
			return entry.NewFromOptionsFunc()
		}
	}
	return nil
}

// pluginOptionFlagName builds the cmdline flag name for a plugin option
func pluginOptionFlagName(entry PluginEntry, opt PluginOption) string {
	return fmt.Sprintf(
		"%s-%s-%s",
		PluginTypeName(entry.Type),
		entry.Name,
		opt.Name,
	)
}

// pluginOptionEnvVar builds the environment variable name for a plugin option
func pluginOptionEnvVar(entry PluginEntry, opt PluginOption) string {
	tmpName := fmt.Sprintf(
		"FENNEC_%s_%s_%s",
		PluginTypeName(entry.Type),
		entry.Name,
		opt.Name,
	)
	tmpName = strings.ReplaceAll(tmpName, "-", "_")
	return strings.ToUpper(tmpName)
}

// PopulateCmdlineOptions adds a flag to the given flag set for each option
// of each registered plugin. The flag values are written directly into the
// option Dest pointers when the flag set is parsed
func PopulateCmdlineOptions(flagset *pflag.FlagSet) error {
	pluginEntriesLock.Lock()
	defer pluginEntriesLock.Unlock()
	for _, entry := range pluginEntries {
		for _, opt := range entry.Options {
			flagName := pluginOptionFlagName(entry, opt)
			switch opt.Type {
			case PluginOptionTypeString:
				dest, ok := opt.Dest.(*string)
				if !ok {
					return fmt.Errorf(
						"option %s: expected *string destination",
						flagName,
					)
				}
				defaultValue, ok := opt.DefaultValue.(string)
				if !ok {
					return fmt.Errorf(
						"option %s: expected string default value",
						flagName,
					)
				}
				flagset.StringVar(dest, flagName, defaultValue, opt.Description)
			case PluginOptionTypeBool:
				dest, ok := opt.Dest.(*bool)
				if !ok {
					return fmt.Errorf(
						"option %s: expected *bool destination",
						flagName,
					)
				}
				defaultValue, ok := opt.DefaultValue.(bool)
				if !ok {
					return fmt.Errorf(
						"option %s: expected bool default value",
						flagName,
					)
				}
				flagset.BoolVar(dest, flagName, defaultValue, opt.Description)
			case PluginOptionTypeInt:
				dest, ok := opt.Dest.(*int)
				if !ok {
					return fmt.Errorf(
						"option %s: expected *int destination",
						flagName,
					)
				}
				defaultValue, ok := opt.DefaultValue.(int)
				if !ok {
					return fmt.Errorf(
						"option %s: expected int default value",
						flagName,
					)
				}
				flagset.IntVar(dest, flagName, defaultValue, opt.Description)
			case PluginOptionTypeUint:
				dest, ok := opt.Dest.(*uint64)
				if !ok {
					return fmt.Errorf(
						"option %s: expected *uint64 destination",
						flagName,
					)
				}
				defaultValue, ok := opt.DefaultValue.(uint64)
				if !ok {
					return fmt.Errorf(
						"option %s: expected uint64 default value",
						flagName,
					)
				}
				flagset.Uint64Var(dest, flagName, defaultValue, opt.Description)
			default:
				return fmt.Errorf(
					"option %s: unknown option type %d",
					flagName,
					opt.Type,
				)
			}
		}
	}
	return nil
}

// ProcessEnvVars reads plugin options from environment variables. The
// variable name for each option follows the pattern
// FENNEC_<PLUGIN TYPE>_<PLUGIN NAME>_<OPTION NAME>
func ProcessEnvVars() error {
	pluginEntriesLock.Lock()
	defer pluginEntriesLock.Unlock()
	for _, entry := range pluginEntries {
		for _, opt := range entry.Options {
			envVal, ok := os.LookupEnv(pluginOptionEnvVar(entry, opt))
			if !ok {
				continue
			}
			if err := setPluginOptionFromString(&opt, envVal); err != nil {
				return fmt.Errorf(
					"%s: %w",
					pluginOptionEnvVar(entry, opt),
					err,
				)
			}
		}
	}
	return nil
}

// ProcessConfig applies plugin option values from parsed config file
// sections. The outer map key is the plugin type name, the middle key is the
// plugin name, and the inner map holds option name/value pairs
func ProcessConfig(
	pluginConfig map[string]map[string]map[string]any,
) error {
	pluginEntriesLock.Lock()
	defer pluginEntriesLock.Unlock()
	for typeName, plugins := range pluginConfig {
		for pluginName, options := range plugins {
			entry := findPluginEntry(typeName, pluginName)
			if entry == nil {
				return fmt.Errorf(
					"unknown %s plugin in config: %s",
					typeName,
					pluginName,
				)
			}
			for optName, optValue := range options {
				found := false
				for i := range entry.Options {
					opt := &entry.Options[i]
					if opt.Name != optName {
						continue
					}
					found = true
					if err := setPluginOptionValue(opt, optValue); err != nil {
						return fmt.Errorf(
							"%s plugin %s option %s: %w",
							typeName,
							pluginName,
							optName,
							err,
						)
					}
					break
				}
				if !found {
					return fmt.Errorf(
						"unknown option for %s plugin %s: %s",
						typeName,
						pluginName,
						optName,
					)
				}
			}
		}
	}
	return nil
}

// findPluginEntry looks up a registry entry by type name and plugin name.
// The caller must hold pluginEntriesLock
func findPluginEntry(typeName, pluginName string) *PluginEntry {
	for i := range pluginEntries {
		entry := &pluginEntries[i]
		if PluginTypeName(entry.Type) == typeName &&
			entry.Name == pluginName {
			return entry
		}
	}
	return nil
}

// setPluginOptionFromString parses a string value per the option type and
// assigns it to the option destination
func setPluginOptionFromString(opt *PluginOption, value string) error {
	switch opt.Type {
	case PluginOptionTypeString:
		return setPluginOptionValue(opt, value)
	case PluginOptionTypeBool:
		tmpValue, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value: %s", value)
		}
		return setPluginOptionValue(opt, tmpValue)
	case PluginOptionTypeInt:
		tmpValue, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid int value: %s", value)
		}
		return setPluginOptionValue(opt, tmpValue)
	case PluginOptionTypeUint:
		tmpValue, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid uint value: %s", value)
		}
		return setPluginOptionValue(opt, tmpValue)
	default:
		return fmt.Errorf("unknown option type %d", opt.Type)
	}
}
