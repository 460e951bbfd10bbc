package plugin_test

import (
	"testing"

	"github.com/blinklabs-io/fennec/database/plugin"
	_ "github.com/blinklabs-io/fennec/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/fennec/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/fennec/internal/config"
)

// TestSetPluginOption covers programmatic option overrides against the real
// registered plugins. It mutates shared option state in the imported plugin
// packages, so it cannot run in parallel with plugin construction.
func TestSetPluginOption(t *testing.T) {
	tmpDir := t.TempDir()
	tests := []struct {
		name       string
		pluginType plugin.PluginType
		pluginName string
		option     string
		value      any
		wantErr    bool
	}{
		{
			name:       "sqlite data-dir in memory",
			pluginType: plugin.PluginTypeMetadata,
			pluginName: config.DefaultMetadataPlugin,
			option:     "data-dir",
			value:      "",
		},
		{
			name:       "wrong value type",
			pluginType: plugin.PluginTypeMetadata,
			pluginName: config.DefaultMetadataPlugin,
			option:     "data-dir",
			value:      123,
			wantErr:    true,
		},
		{
			name:       "unknown option is a no-op",
			pluginType: plugin.PluginTypeMetadata,
			pluginName: config.DefaultMetadataPlugin,
			option:     "does-not-exist",
			value:      "x",
		},
		{
			name:       "badger data-dir",
			pluginType: plugin.PluginTypeBlob,
			pluginName: config.DefaultBlobPlugin,
			option:     "data-dir",
			value:      tmpDir,
		},
		{
			name:       "badger uint option",
			pluginType: plugin.PluginTypeBlob,
			pluginName: config.DefaultBlobPlugin,
			option:     "block-cache-size",
			value:      uint64(100000000),
		},
		{
			name:       "badger bool option",
			pluginType: plugin.PluginTypeBlob,
			pluginName: config.DefaultBlobPlugin,
			option:     "gc",
			value:      true,
		},
		{
			name:       "unknown plugin",
			pluginType: plugin.PluginTypeMetadata,
			pluginName: "nonexistent",
			option:     "data-dir",
			value:      "x",
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := plugin.SetPluginOption(
				tt.pluginType,
				tt.pluginName,
				tt.option,
				tt.value,
			)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
