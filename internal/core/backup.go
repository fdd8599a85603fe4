package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	blobcore "spycats/internal/infra/blob/core"
)

// BackupPrefix is the key prefix under which snapshots are written.
const BackupPrefix = "backups/"

// Backup serializes the full store snapshot as JSON and writes it to blobs
// under BackupPrefix. A nil clock uses the system clock.
func Backup(ctx context.Context, store PersistentStore, blobs blobcore.Store, clock Clock) (blobcore.Info, error) {
	if clock == nil {
		clock = systemClock{}
	}
	snapshot := store.ExportState()
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return blobcore.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := BackupPrefix + "spycats-" + clock.Now().UTC().Format("20060102T150405.000000000Z") + ".json"
	info, err := blobs.Put(ctx, key, bytes.NewReader(payload), blobcore.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"cats":     strconv.Itoa(len(snapshot.Cats)),
			"missions": strconv.Itoa(len(snapshot.Missions)),
			"targets":  strconv.Itoa(len(snapshot.Targets)),
		},
	})
	if err != nil {
		return blobcore.Info{}, fmt.Errorf("write backup %s: %w", key, err)
	}
	return info, nil
}

// RestoreSnapshot reads a backup written by Backup without applying it.
func RestoreSnapshot(ctx context.Context, blobs blobcore.Store, key string) (Snapshot, error) {
	_, rc, err := blobs.Get(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	defer rc.Close()
	var snapshot Snapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode backup %s: %w", key, err)
	}
	return snapshot, nil
}

// Restore reads the backup at key and replaces the store's contents with it in
// a single transaction. Durable backends mirror the replacement through their
// commit hook, so the restored state survives a restart.
func Restore(ctx context.Context, store PersistentStore, blobs blobcore.Store, key string) (Snapshot, error) {
	snapshot, err := RestoreSnapshot(ctx, blobs, key)
	if err != nil {
		return Snapshot{}, err
	}
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.ReplaceState(snapshot)
	}); err != nil {
		return Snapshot{}, fmt.Errorf("restore %s: %w", key, err)
	}
	return snapshot, nil
}
