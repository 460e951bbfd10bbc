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

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/blinklabs-io/fennec/database"
	"github.com/blinklabs-io/fennec/database/models"
	"github.com/blinklabs-io/fennec/internal/config"
	"github.com/blinklabs-io/fennec/ledger"
	"github.com/blinklabs-io/fennec/names"
	"github.com/blinklabs-io/fennec/network"
	"github.com/spf13/cobra"
)

var inspectFlags = struct {
	name        string
	mappingType string
}{}

func inspectRun(_ *cobra.Command, _ []string, cfg *config.Config) {
	logger := commonRun()

	db, err := database.New(&database.Config{
		DataDir:        cfg.DatabasePath,
		Logger:         logger,
		BlobPlugin:     cfg.BlobPlugin,
		MetadataPlugin: cfg.MetadataPlugin,
	})
	if err != nil {
		var dbErr database.CommitTimestampError
		if !errors.As(err, &dbErr) {
			slog.Error(err.Error())
			os.Exit(1)
		}
		// A torn commit does not block read-only inspection. Repair
		// happens the next time the node starts
		fmt.Printf("warning: %s\n", err)
	}
	defer db.Close()

	settings, err := database.GetSettings(db)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	if settings == nil {
		fmt.Println("database is empty")
		return
	}
	mappings, err := database.CountMappings(db)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	owners, err := database.CountOwners(db)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	fmt.Printf("network:  %s\n", cfg.Network)
	fmt.Printf("height:   %d\n", settings.TopHeight)
	fmt.Printf("hash:     %x\n", settings.TopHash)
	fmt.Printf("schema:   %d\n", settings.Version)
	fmt.Printf("mappings: %d\n", mappings)
	fmt.Printf("owners:   %d\n", owners)

	if inspectFlags.name == "" {
		return
	}
	if err := inspectName(cfg, logger, db, settings); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// inspectName prints the current record for a single name, re-verifies its
// registration history and, since the plaintext name is known, decrypts
// the stored value
func inspectName(
	cfg *config.Config,
	logger *slog.Logger,
	db *database.Database,
	settings *models.Settings,
) error {
	mappingType, err := names.ParseMappingType(inspectFlags.mappingType)
	if err != nil {
		return err
	}
	net, ok := network.NetworkByName(cfg.Network)
	if !ok {
		return fmt.Errorf("unknown network: %s", cfg.Network)
	}
	lg, err := ledger.NewLedger(ledger.LedgerConfig{
		Logger:    logger,
		Database:  db,
		Network:   net,
		TopHeight: settings.TopHeight,
		TopHash:   settings.TopHash,
	})
	if err != nil {
		return err
	}

	nameHash := names.NameToHash(inspectFlags.name)
	record, err := lg.Lookup(mappingType, nameHash)
	if err != nil {
		return err
	}
	fmt.Printf("\nname:     %s (%s)\n", inspectFlags.name, mappingType)
	fmt.Printf("hash:     %s\n", nameHash)
	if record == nil {
		fmt.Println("record:   not found")
		return nil
	}
	fmt.Printf("owner:    %x\n", record.Owner)
	fmt.Printf("tx:       %s\n", record.TxID)
	if record.IsUpdate() {
		fmt.Printf("prev tx:  %s\n", record.PrevTxID)
	}
	fmt.Printf("height:   %d\n", record.RegisterHeight)
	fmt.Printf(
		"active:   %t\n",
		record.Active(net, settings.TopHeight),
	)

	chainLen, err := lg.VerifyChain(mappingType, nameHash)
	if err != nil {
		return fmt.Errorf("history verification failed: %w", err)
	}
	fmt.Printf("history:  %d record(s), verified\n", chainLen)

	value, err := lg.Resolve(
		mappingType,
		inspectFlags.name,
		settings.TopHeight,
	)
	if err != nil {
		if errors.Is(err, ledger.ErrRecordExpired) {
			fmt.Println("value:    (expired)")
			return nil
		}
		return err
	}
	fmt.Printf("value:    %s\n", value)
	return nil
}

func inspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show database status and optionally one name record",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			inspectRun(cmd, args, cfg)
		},
	}
	cmd.Flags().
		StringVar(&inspectFlags.name, "name", "", "name record to look up and verify")
	cmd.Flags().
		StringVar(&inspectFlags.mappingType, "type", "chat", "mapping type of the name")
	return cmd
}
