package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"spycats/pkg/domain"
)

func strPtr(v string) *string { return &v }

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path, domain.NewRulesEngine())
	require.NoError(t, err, "NewStore should open %s", path)
	return store
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spycats.db")
	store := openTestStore(t, path)
	defer store.Close()

	require.NoError(t, RunMigrations(store.DB().DB), "second migration run should not error")

	for _, table := range []string{"cats", "missions", "targets"} {
		var name string
		err := store.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "%s table should exist", table)
		require.Equal(t, table, name)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "spycats.db")
	store := openTestStore(t, path)
	require.Equal(t, path, store.Path())

	var catID, missionID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		cat, err := tx.CreateCat(domain.Cat{Name: "Tom", YearsOfExperience: 4, Breed: "Siamese", Salary: decimal.RequireFromString("1234.50")})
		if err != nil {
			return err
		}
		catID = cat.ID
		mission, err := tx.CreateMission(domain.Mission{
			CatID:   strPtr(cat.ID),
			Targets: []domain.Target{{Name: "Jerry", Country: "US"}, {Name: "Spike", Country: "UK"}},
		})
		if err != nil {
			return err
		}
		missionID = mission.ID
		_, err = tx.UpdateTarget(mission.Targets[0].ID, func(tg *domain.Target) error {
			tg.Notes = "cheese shop"
			return nil
		})
		return err
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := openTestStore(t, path)
	defer reopened.Close()

	cat, ok := reopened.GetCat(catID)
	require.True(t, ok, "cat should be hydrated from sqlite")
	require.True(t, cat.Salary.Equal(decimal.RequireFromString("1234.5")), "salary %s", cat.Salary)
	require.Equal(t, 4, cat.YearsOfExperience)

	mission, ok := reopened.GetMission(missionID)
	require.True(t, ok)
	require.NotNil(t, mission.CatID)
	require.Equal(t, catID, *mission.CatID)
	require.Len(t, mission.Targets, 2)
	require.Equal(t, "Jerry", mission.Targets[0].Name)
	require.Equal(t, "cheese shop", mission.Targets[0].Notes)
}

func TestStoreMirrorsDeletes(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "spycats.db"))
	defer store.Close()

	var catID, missionID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		cat, err := tx.CreateCat(domain.Cat{Name: "Tom", Breed: "Siamese", Salary: decimal.NewFromInt(10)})
		if err != nil {
			return err
		}
		catID = cat.ID
		mission, err := tx.CreateMission(domain.Mission{CatID: strPtr(cat.ID), Targets: []domain.Target{{Name: "a", Country: "b"}}})
		missionID = mission.ID
		return err
	})
	require.NoError(t, err)

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error { return tx.DeleteCat(catID) })
	require.NoError(t, err)

	var catRef *string
	require.NoError(t, store.DB().Get(&catRef, `SELECT cat_id FROM missions WHERE id = ?`, missionID))
	require.Nil(t, catRef, "deleting a cat clears the mission reference")

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error { return tx.DeleteMission(missionID) })
	require.NoError(t, err)

	var targets int
	require.NoError(t, store.DB().Get(&targets, `SELECT COUNT(*) FROM targets`))
	require.Zero(t, targets, "targets cascade with their mission")
}

func TestSchemaRejectsSecondActiveMission(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "spycats.db"))
	defer store.Close()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateCat(domain.Cat{Base: domain.Base{ID: "cat-1"}, Name: "Tom", Breed: "Siamese", Salary: decimal.NewFromInt(1)})
		return err
	})
	require.NoError(t, err)

	insert := `INSERT INTO missions (id, cat_id, complete, created_at, updated_at) VALUES (?, 'cat-1', 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	_, err = store.DB().Exec(insert, "m-1")
	require.NoError(t, err)
	_, err = store.DB().Exec(insert, "m-2")
	require.Error(t, err, "partial unique index must reject a second incomplete mission")
}
