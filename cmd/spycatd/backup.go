package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spycats/internal/config"
	"spycats/internal/core"
	"spycats/internal/infra/blob"
	blobcore "spycats/internal/infra/blob/core"
	"spycats/internal/infra/blob/s3"
)

const backupLinkExpiry = time.Hour

func newBackupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a JSON snapshot of all cats, missions and targets to blob storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			blobs, err := openBlobStore(ctx, cfg)
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(ctx) }()

			info, err := core.Backup(ctx, a.store, blobs, nil)
			if err != nil {
				return err
			}
			a.logger.WithField("key", info.Key).Info("backup written")
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d\n", blobs.Driver(), info.Key, info.Size); err != nil {
				return err
			}
			link, err := blobs.PresignURL(ctx, info.Key, blobcore.SignedURLOptions{Method: "GET", Expiry: backupLinkExpiry})
			switch {
			case errors.Is(err, blobcore.ErrUnsupported):
				return nil
			case err != nil:
				return fmt.Errorf("presign %s: %w", info.Key, err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), link)
			return err
		},
	}
}

func newRestoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <key>",
		Short: "Replace all cats, missions and targets with a snapshot from blob storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			blobs, err := openBlobStore(ctx, cfg)
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(ctx) }()

			snapshot, err := core.Restore(ctx, a.store, blobs, args[0])
			if err != nil {
				return err
			}
			a.logger.WithField("key", args[0]).Info("backup restored")
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s cats=%d missions=%d targets=%d\n",
				args[0], len(snapshot.Cats), len(snapshot.Missions), len(snapshot.Targets))
			return err
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openBlobStore opens the configured backup store. The memory driver is
// refused because snapshots written to it vanish when the command exits.
func openBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	driver := blobcore.Driver(cfg.BlobDriver)
	if driver == blobcore.DriverMemory {
		return nil, errors.New("SPYCATS_BLOB_DRIVER=memory does not outlive the process; use fs or s3 for backups")
	}
	return blob.Open(ctx, blob.Options{
		Driver: driver,
		FSRoot: cfg.BlobFSRoot,
		S3: s3.Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			PathStyle:       cfg.S3PathStyle,
		},
	})
}
