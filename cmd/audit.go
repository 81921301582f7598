/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/authloop/authserver/config"
	"github.com/authloop/authserver/internal/archive"
	"github.com/authloop/authserver/internal/bus"
	"github.com/authloop/authserver/internal/server"
	"github.com/authloop/authserver/internal/storage"
	"github.com/authloop/authserver/types"
	"github.com/spf13/cobra"
)

// auditCmd groups the audit trail consumers. Both require the server to
// be running with AUDIT_SINK=bus.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Consume the audit event bus",
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print audit events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		eventBus, err := server.NewBus(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = eventBus.Close()
		}()

		err = eventBus.Subscribe(cmd.Context(), func(ctx context.Context, d bus.Delivery) error {
			var event types.AuditEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				fmt.Printf("%s\t(unparseable event)\n", d.ID)
				return nil
			}
			fmt.Printf("%s\t%s\tuser=%s\temail=%s\n",
				event.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
				event.Type, event.UserID, event.Email)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var auditArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Drain audit events into object storage batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		cfg := config.LoadConfig()

		eventBus, err := server.NewBus(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = eventBus.Close()
		}()

		store, err := newArchiveStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		archiver := archive.NewArchiver(eventBus, store, logger)
		err = archiver.Run(cmd.Context())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditArchiveCmd)
}

func newArchiveStore(ctx context.Context, cfg config.Config) (storage.ArchiveStore, error) {
	switch cfg.Archive.Backend {
	case "minio", "":
		return storage.NewMinioStore(cfg.Archive.Minio)
	case "gcs":
		return storage.NewGCSStore(ctx, cfg.Archive.GCS)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}
