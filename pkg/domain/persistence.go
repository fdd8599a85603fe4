package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateCat(Cat) (Cat, error)
	UpdateCat(id string, mutator func(*Cat) error) (Cat, error)
	// DeleteCat removes the cat and clears the cat reference on its missions.
	DeleteCat(id string) error
	// CreateMission stores the mission together with the targets carried on it.
	CreateMission(Mission) (Mission, error)
	UpdateMission(id string, mutator func(*Mission) error) (Mission, error)
	// DeleteMission removes the mission and every target it owns.
	DeleteMission(id string) error
	UpdateTarget(id string, mutator func(*Target) error) (Target, error)
	// ReplaceState discards every record and loads the snapshot, keeping its
	// identifiers and timestamps. Each removal and insert is recorded as a change.
	ReplaceState(Snapshot) error
	FindCat(id string) (Cat, bool)
	FindMission(id string) (Mission, bool)
	FindTarget(id string) (Target, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// read paths. Missions are returned with their targets attached.
type TransactionView interface {
	ListCats() []Cat
	ListMissions() []Mission
	ListTargets() []Target
	FindCat(id string) (Cat, bool)
	FindMission(id string) (Mission, bool)
	FindTarget(id string) (Target, bool)
	MissionsForCat(catID string) []Mission
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ExportState() Snapshot
}
