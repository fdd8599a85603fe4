package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spycats/internal/infra/persistence/memory"
	"spycats/pkg/domain"
)

func must[T any](t *testing.T, value T, err error) T {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return value
}

func strPtr(v string) *string {
	return &v
}

func seedCatAndMission(t *testing.T, store *memory.Store) (domain.Cat, domain.Mission) {
	t.Helper()
	var cat domain.Cat
	var mission domain.Mission
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		catVal, err := tx.CreateCat(domain.Cat{Name: "Tom", YearsOfExperience: 3, Breed: "Siamese", Salary: decimal.NewFromInt(1000)})
		cat = must(t, catVal, err)
		missionVal, err := tx.CreateMission(domain.Mission{
			CatID: strPtr(cat.ID),
			Targets: []domain.Target{
				{Name: "Jerry", Country: "US"},
				{Name: "Spike", Country: "UK"},
			},
		})
		mission = must(t, missionVal, err)
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return cat, mission
}

func TestStoreCreateMissionAttachesTargets(t *testing.T) {
	store := memory.NewStore(nil)
	cat, mission := seedCatAndMission(t, store)

	if mission.ID == "" || len(mission.Targets) != 2 {
		t.Fatalf("unexpected mission: %+v", mission)
	}
	if mission.Targets[0].Name != "Jerry" || mission.Targets[1].Name != "Spike" {
		t.Fatalf("targets out of insertion order: %+v", mission.Targets)
	}
	for _, target := range mission.Targets {
		if target.MissionID != mission.ID {
			t.Fatalf("target %s not owned by mission", target.ID)
		}
	}
	got, ok := store.GetMission(mission.ID)
	if !ok || !got.AssignedTo(cat.ID) {
		t.Fatalf("expected committed mission assigned to %s, got %+v", cat.ID, got)
	}
	if got.State() != domain.MissionAssigned {
		t.Fatalf("expected assigned state, got %s", got.State())
	}
}

func TestStoreDeleteMissionCascadesTargets(t *testing.T) {
	store := memory.NewStore(nil)
	_, mission := seedCatAndMission(t, store)

	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteMission(mission.ID)
	}); err != nil {
		t.Fatalf("delete mission: %v", err)
	}
	snapshot := store.ExportState()
	if len(snapshot.Missions) != 0 || len(snapshot.Targets) != 0 {
		t.Fatalf("expected cascade, got %d missions %d targets", len(snapshot.Missions), len(snapshot.Targets))
	}
}

func TestStoreDeleteCatClearsMissionReference(t *testing.T) {
	store := memory.NewStore(nil)
	cat, mission := seedCatAndMission(t, store)

	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteCat(cat.ID)
	})
	if err != nil {
		t.Fatalf("delete cat: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("unexpected violations: %+v", res.Violations)
	}
	got, ok := store.GetMission(mission.ID)
	if !ok {
		t.Fatalf("mission should survive cat deletion")
	}
	if got.CatID != nil {
		t.Fatalf("expected cleared cat reference, got %v", *got.CatID)
	}
}

func TestStoreNotFoundErrors(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()
	cases := map[string]func(domain.Transaction) error{
		"update cat": func(tx domain.Transaction) error {
			_, err := tx.UpdateCat("missing", func(*domain.Cat) error { return nil })
			return err
		},
		"delete cat":     func(tx domain.Transaction) error { return tx.DeleteCat("missing") },
		"delete mission": func(tx domain.Transaction) error { return tx.DeleteMission("missing") },
		"update mission": func(tx domain.Transaction) error {
			_, err := tx.UpdateMission("missing", func(*domain.Mission) error { return nil })
			return err
		},
		"update target": func(tx domain.Transaction) error {
			_, err := tx.UpdateTarget("missing", func(*domain.Target) error { return nil })
			return err
		},
	}
	for name, fn := range cases {
		_, err := store.RunInTransaction(ctx, fn)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("%s: expected not found, got %v", name, err)
		}
	}
}

func TestStoreMissionRejectsUnknownCat(t *testing.T) {
	store := memory.NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateMission(domain.Mission{CatID: strPtr("ghost"), Targets: []domain.Target{{Name: "a", Country: "b"}}})
		return err
	})
	if domain.KindOf(err) != domain.ErrCatNotFound {
		t.Fatalf("expected cat_not_found, got %v", err)
	}
}

func TestStoreFailedTransactionLeavesStateUntouched(t *testing.T) {
	store := memory.NewStore(nil)
	cat, _ := seedCatAndMission(t, store)
	boom := errors.New("boom")

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.UpdateCat(cat.ID, func(c *domain.Cat) error {
			c.Salary = decimal.NewFromInt(1)
			return nil
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := store.GetCat(cat.ID)
	if !got.Salary.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("salary leaked from aborted transaction: %s", got.Salary)
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block_everything" }

func (blockingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{Rule: "block_everything", Severity: domain.SeverityBlock, Message: "nope"}}}, nil
}

func TestStoreRulesBlockCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockingRule{})
	store := memory.NewStore(engine)

	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateCat(domain.Cat{Name: "Tom"})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if len(store.ListCats()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

func TestStoreCommitHookReceivesChangesAndCanAbort(t *testing.T) {
	var seen []domain.Change
	fail := false
	store := memory.NewStore(nil, memory.WithCommitHook(func(_ context.Context, changes []domain.Change) error {
		if fail {
			return errors.New("disk full")
		}
		seen = append(seen, changes...)
		return nil
	}))
	_, mission := seedCatAndMission(t, store)

	if len(seen) != 4 {
		t.Fatalf("expected 4 changes (cat, mission, 2 targets), got %d", len(seen))
	}
	if seen[1].Entity != domain.EntityMission || seen[2].Entity != domain.EntityTarget {
		t.Fatalf("mission must be recorded before its targets: %+v", seen)
	}

	fail = true
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteMission(mission.ID)
	})
	if err == nil {
		t.Fatalf("expected hook failure")
	}
	if _, ok := store.GetMission(mission.ID); !ok {
		t.Fatalf("mission deleted despite hook failure")
	}
}

func TestStoreUpdateTargetKeepsOwnership(t *testing.T) {
	store := memory.NewStore(nil)
	_, mission := seedCatAndMission(t, store)
	targetID := mission.Targets[0].ID

	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateTarget(targetID, func(tg *domain.Target) error {
			tg.MissionID = "elsewhere"
			tg.Notes = "seen at dawn"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update target: %v", err)
	}
	err := store.View(context.Background(), func(view domain.TransactionView) error {
		target, ok := view.FindTarget(targetID)
		if !ok {
			t.Fatalf("target missing")
		}
		if target.MissionID != mission.ID || target.Notes != "seen at dawn" {
			t.Fatalf("unexpected target: %+v", target)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStoreClockAndImport(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil, memory.WithClock(func() time.Time { return fixed }))
	cat, mission := seedCatAndMission(t, store)
	if !cat.CreatedAt.Equal(fixed) || !mission.Targets[0].UpdatedAt.Equal(fixed) {
		t.Fatalf("expected fixed timestamps, got %v / %v", cat.CreatedAt, mission.Targets[0].UpdatedAt)
	}

	clone := memory.NewStore(nil)
	clone.ImportState(store.ExportState())
	got, ok := clone.GetMission(mission.ID)
	if !ok || len(got.Targets) != 2 {
		t.Fatalf("import lost mission targets: %+v", got)
	}
	if len(clone.ListMissions()) != 1 || len(clone.ListCats()) != 1 {
		t.Fatalf("unexpected imported state")
	}
}

func TestStoreRespectsCancelledContext(t *testing.T) {
	store := memory.NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.RunInTransaction(ctx, func(domain.Transaction) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestStoreReplaceStateRecordsDeletesThenCreates(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	source := memory.NewStore(nil, memory.WithClock(func() time.Time { return fixed }))
	cat, mission := seedCatAndMission(t, source)
	snapshot := source.ExportState()

	var seen []domain.Change
	store := memory.NewStore(nil, memory.WithCommitHook(func(_ context.Context, changes []domain.Change) error {
		seen = append(seen[:0], changes...)
		return nil
	}))
	stale, _ := seedCatAndMission(t, store)

	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.ReplaceState(snapshot)
	}); err != nil {
		t.Fatalf("replace state: %v", err)
	}
	if len(seen) != 8 {
		t.Fatalf("expected 4 deletes and 4 creates, got %d", len(seen))
	}
	order := []struct {
		entity domain.EntityType
		action domain.Action
	}{
		{domain.EntityTarget, domain.ActionDelete},
		{domain.EntityTarget, domain.ActionDelete},
		{domain.EntityMission, domain.ActionDelete},
		{domain.EntityCat, domain.ActionDelete},
		{domain.EntityCat, domain.ActionCreate},
		{domain.EntityMission, domain.ActionCreate},
		{domain.EntityTarget, domain.ActionCreate},
		{domain.EntityTarget, domain.ActionCreate},
	}
	for i, want := range order {
		if seen[i].Entity != want.entity || seen[i].Action != want.action {
			t.Fatalf("change %d: got %s %s, want %s %s", i, seen[i].Action, seen[i].Entity, want.action, want.entity)
		}
	}

	if _, ok := store.GetCat(stale.ID); ok {
		t.Fatalf("stale cat survived replace")
	}
	got, ok := store.GetMission(mission.ID)
	if !ok || !got.AssignedTo(cat.ID) || len(got.Targets) != 2 {
		t.Fatalf("unexpected restored mission %+v", got)
	}
	if got.Targets[0].ID != mission.Targets[0].ID || !got.Targets[0].CreatedAt.Equal(fixed) {
		t.Fatalf("restore must keep target ids and timestamps: %+v", got.Targets[0])
	}
}

func TestStoreReplaceStateRejectsDanglingReferences(t *testing.T) {
	source := memory.NewStore(nil)
	_, _ = seedCatAndMission(t, source)
	snapshot := source.ExportState()
	snapshot.Cats = map[string]domain.Cat{}

	store := memory.NewStore(nil)
	keep, _ := seedCatAndMission(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.ReplaceState(snapshot)
	})
	if !errors.Is(err, domain.ErrCatNotFound) {
		t.Fatalf("expected cat not found, got %v", err)
	}
	if _, ok := store.GetCat(keep.ID); !ok {
		t.Fatalf("failed replace must leave state untouched")
	}
}
