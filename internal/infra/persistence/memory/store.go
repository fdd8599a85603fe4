// Package memory provides an in-memory implementation of the core persistence
// store used for tests, ephemeral environments and as the transactional
// engine behind the durable backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"spycats/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Cat aliases domain.Cat for in-memory persistence operations.
	Cat = domain.Cat
	// Mission aliases domain.Mission.
	Mission = domain.Mission
	// Target aliases domain.Target.
	Target = domain.Target
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// Snapshot aliases domain.Snapshot.
	Snapshot = domain.Snapshot
)

// CommitHook receives the change set of a transaction after the rules engine
// accepted it and before the new state becomes visible. Returning an error
// aborts the commit and leaves the published state untouched.
type CommitHook func(ctx context.Context, changes []Change) error

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithCommitHook installs a hook that durable backends use to mirror changes.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.commitHook = hook }
}

func mustApply(label string, err error) {
	if err != nil {
		panic(fmt.Errorf("memory store %s: %w", label, err))
	}
}

func payloadOf[T any](value T) domain.ChangePayload {
	payload, err := domain.NewChangePayloadFromValue(value)
	mustApply("encode change payload", err)
	return payload
}

type memoryState struct {
	cats     map[string]Cat
	missions map[string]Mission
	targets  map[string]Target
}

func newMemoryState() memoryState {
	return memoryState{
		cats:     make(map[string]Cat),
		missions: make(map[string]Mission),
		targets:  make(map[string]Target),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.cats {
		cloned.cats[k] = v
	}
	for k, v := range s.missions {
		cloned.missions[k] = cloneMission(v)
	}
	for k, v := range s.targets {
		cloned.targets[k] = v
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{Cats: cloned.cats, Missions: cloned.missions, Targets: cloned.targets}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Cats {
		state.cats[k] = v
	}
	for k, v := range s.Missions {
		state.missions[k] = cloneMission(v)
	}
	for k, v := range s.Targets {
		state.targets[k] = v
	}
	return state
}

// cloneMission copies the mission without its decorated targets; targets live
// in their own bucket and are attached on read.
func cloneMission(m Mission) Mission {
	cp := m
	if m.CatID != nil {
		id := *m.CatID
		cp.CatID = &id
	}
	cp.Targets = nil
	return cp
}

func sortByCreation[T any](items []T, base func(T) domain.Base) {
	sort.Slice(items, func(i, j int) bool {
		a, b := base(items[i]), base(items[j])
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func missionTargets(state *memoryState, missionID string) []Target {
	var out []Target
	for _, t := range state.targets {
		if t.MissionID == missionID {
			out = append(out, t)
		}
	}
	sortByCreation(out, func(t Target) domain.Base { return t.Base })
	return out
}

func decorateMission(state *memoryState, mission Mission) Mission {
	cp := cloneMission(mission)
	cp.Targets = missionTargets(state, mission.ID)
	return cp
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu         sync.RWMutex
	state      memoryState
	engine     *RulesEngine
	nowFn      func() time.Time
	commitHook CommitHook
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newID returns a time-ordered identifier so creation order survives sorting by ID.
func (s *Store) newID() string {
	id, err := uuid.NewV7()
	mustApply("generate id", err)
	return id.String()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListCats returns all cats ordered by creation.
func (v transactionView) ListCats() []Cat {
	out := make([]Cat, 0, len(v.state.cats))
	for _, c := range v.state.cats {
		out = append(out, c)
	}
	sortByCreation(out, func(c Cat) domain.Base { return c.Base })
	return out
}

// ListMissions returns all missions with their targets attached.
func (v transactionView) ListMissions() []Mission {
	out := make([]Mission, 0, len(v.state.missions))
	for _, m := range v.state.missions {
		out = append(out, decorateMission(v.state, m))
	}
	sortByCreation(out, func(m Mission) domain.Base { return m.Base })
	return out
}

// ListTargets returns every target across missions.
func (v transactionView) ListTargets() []Target {
	out := make([]Target, 0, len(v.state.targets))
	for _, t := range v.state.targets {
		out = append(out, t)
	}
	sortByCreation(out, func(t Target) domain.Base { return t.Base })
	return out
}

func (v transactionView) FindCat(id string) (Cat, bool) {
	c, ok := v.state.cats[id]
	return c, ok
}

func (v transactionView) FindMission(id string) (Mission, bool) {
	m, ok := v.state.missions[id]
	if !ok {
		return Mission{}, false
	}
	return decorateMission(v.state, m), true
}

func (v transactionView) FindTarget(id string) (Target, bool) {
	t, ok := v.state.targets[id]
	return t, ok
}

// MissionsForCat returns every mission, complete or not, referencing the cat.
func (v transactionView) MissionsForCat(catID string) []Mission {
	var out []Mission
	for _, m := range v.state.missions {
		if m.AssignedTo(catID) {
			out = append(out, decorateMission(v.state, m))
		}
	}
	sortByCreation(out, func(m Mission) domain.Base { return m.Base })
	return out
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Transactions are serialized, so reads performed by fn and the resulting
// writes are linearizable with respect to every other transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.commitHook != nil && len(tx.changes) > 0 {
		if err := s.commitHook(ctx, tx.changes); err != nil {
			return result, fmt.Errorf("commit: %w", err)
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// GetCat returns a cat by ID from the committed state.
func (s *Store) GetCat(id string) (Cat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindCat(id)
}

// ListCats returns all committed cats.
func (s *Store) ListCats() []Cat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListCats()
}

// GetMission returns a committed mission with its targets.
func (s *Store) GetMission(id string) (Mission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindMission(id)
}

// ListMissions returns all committed missions with their targets.
func (s *Store) ListMissions() []Mission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListMissions()
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) FindCat(id string) (Cat, bool) {
	return tx.Snapshot().FindCat(id)
}

func (tx *transaction) FindMission(id string) (Mission, bool) {
	return tx.Snapshot().FindMission(id)
}

func (tx *transaction) FindTarget(id string) (Target, bool) {
	return tx.Snapshot().FindTarget(id)
}

// CreateCat stores a new cat within the transaction.
func (tx *transaction) CreateCat(c Cat) (Cat, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.cats[c.ID]; exists {
		return Cat{}, fmt.Errorf("cat %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.cats[c.ID] = c
	tx.recordChange(Change{Entity: domain.EntityCat, Action: domain.ActionCreate, After: payloadOf(c)})
	return c, nil
}

// UpdateCat mutates a cat using the provided mutator function.
func (tx *transaction) UpdateCat(id string, mutator func(*Cat) error) (Cat, error) {
	current, ok := tx.state.cats[id]
	if !ok {
		return Cat{}, domain.NotFound(domain.EntityCat, id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Cat{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.cats[id] = current
	tx.recordChange(Change{Entity: domain.EntityCat, Action: domain.ActionUpdate, Before: payloadOf(before), After: payloadOf(current)})
	return current, nil
}

// DeleteCat removes a cat and clears the reference held by its missions.
func (tx *transaction) DeleteCat(id string) error {
	current, ok := tx.state.cats[id]
	if !ok {
		return domain.NotFound(domain.EntityCat, id)
	}
	for _, mission := range newTransactionView(&tx.state).MissionsForCat(id) {
		if _, err := tx.UpdateMission(mission.ID, func(m *Mission) error {
			m.CatID = nil
			return nil
		}); err != nil {
			return err
		}
	}
	delete(tx.state.cats, id)
	tx.recordChange(Change{Entity: domain.EntityCat, Action: domain.ActionDelete, Before: payloadOf(current)})
	return nil
}

// CreateMission stores a mission and the targets carried on m.Targets.
func (tx *transaction) CreateMission(m Mission) (Mission, error) {
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.missions[m.ID]; exists {
		return Mission{}, fmt.Errorf("mission %q already exists", m.ID)
	}
	if m.CatID != nil {
		if _, ok := tx.state.cats[*m.CatID]; !ok {
			return Mission{}, domain.NewError(domain.ErrCatNotFound, domain.EntityCat, *m.CatID, "cat %s does not exist", *m.CatID)
		}
	}
	targets := m.Targets
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.missions[m.ID] = cloneMission(m)
	tx.recordChange(Change{Entity: domain.EntityMission, Action: domain.ActionCreate, After: payloadOf(cloneMission(m))})

	for _, t := range targets {
		t.ID = tx.store.newID()
		t.MissionID = m.ID
		t.CreatedAt = tx.now
		t.UpdatedAt = tx.now
		tx.state.targets[t.ID] = t
		tx.recordChange(Change{Entity: domain.EntityTarget, Action: domain.ActionCreate, After: payloadOf(t)})
	}
	return decorateMission(&tx.state, tx.state.missions[m.ID]), nil
}

// UpdateMission mutates mission-level fields. Targets on the mutated value are ignored.
func (tx *transaction) UpdateMission(id string, mutator func(*Mission) error) (Mission, error) {
	current, ok := tx.state.missions[id]
	if !ok {
		return Mission{}, domain.NotFound(domain.EntityMission, id)
	}
	before := cloneMission(current)
	working := decorateMission(&tx.state, current)
	if err := mutator(&working); err != nil {
		return Mission{}, err
	}
	if working.CatID != nil {
		if _, ok := tx.state.cats[*working.CatID]; !ok {
			return Mission{}, domain.NewError(domain.ErrCatNotFound, domain.EntityCat, *working.CatID, "cat %s does not exist", *working.CatID)
		}
	}
	working.ID = id
	working.CreatedAt = before.CreatedAt
	working.UpdatedAt = tx.now
	tx.state.missions[id] = cloneMission(working)
	tx.recordChange(Change{Entity: domain.EntityMission, Action: domain.ActionUpdate, Before: payloadOf(before), After: payloadOf(cloneMission(working))})
	return decorateMission(&tx.state, tx.state.missions[id]), nil
}

// DeleteMission removes a mission and cascades to its targets.
func (tx *transaction) DeleteMission(id string) error {
	current, ok := tx.state.missions[id]
	if !ok {
		return domain.NotFound(domain.EntityMission, id)
	}
	for _, t := range missionTargets(&tx.state, id) {
		delete(tx.state.targets, t.ID)
		tx.recordChange(Change{Entity: domain.EntityTarget, Action: domain.ActionDelete, Before: payloadOf(t)})
	}
	delete(tx.state.missions, id)
	tx.recordChange(Change{Entity: domain.EntityMission, Action: domain.ActionDelete, Before: payloadOf(cloneMission(current))})
	return nil
}

// UpdateTarget mutates a target. Ownership cannot be moved between missions.
func (tx *transaction) UpdateTarget(id string, mutator func(*Target) error) (Target, error) {
	current, ok := tx.state.targets[id]
	if !ok {
		return Target{}, domain.NotFound(domain.EntityTarget, id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Target{}, err
	}
	current.ID = id
	current.MissionID = before.MissionID
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.targets[id] = current
	tx.recordChange(Change{Entity: domain.EntityTarget, Action: domain.ActionUpdate, Before: payloadOf(before), After: payloadOf(current)})
	return current, nil
}

// ReplaceState swaps the transaction state for snapshot. Deletes are recorded
// children first and inserts parents first so relational mirrors can replay
// them in order.
func (tx *transaction) ReplaceState(snapshot Snapshot) error {
	next := memoryStateFromSnapshot(snapshot)
	for id, m := range next.missions {
		if m.ID != id {
			return fmt.Errorf("mission key %q does not match id %q", id, m.ID)
		}
		if m.CatID != nil {
			if _, ok := next.cats[*m.CatID]; !ok {
				return domain.NewError(domain.ErrCatNotFound, domain.EntityCat, *m.CatID, "mission %s references missing cat %s", id, *m.CatID)
			}
		}
	}
	for id, t := range next.targets {
		if t.ID != id {
			return fmt.Errorf("target key %q does not match id %q", id, t.ID)
		}
		if _, ok := next.missions[t.MissionID]; !ok {
			return domain.NotFound(domain.EntityMission, t.MissionID)
		}
	}
	for id, c := range next.cats {
		if c.ID != id {
			return fmt.Errorf("cat key %q does not match id %q", id, c.ID)
		}
	}

	view := newTransactionView(&tx.state)
	for _, t := range view.ListTargets() {
		tx.recordChange(Change{Entity: domain.EntityTarget, Action: domain.ActionDelete, Before: payloadOf(t)})
	}
	for _, m := range view.ListMissions() {
		tx.recordChange(Change{Entity: domain.EntityMission, Action: domain.ActionDelete, Before: payloadOf(cloneMission(m))})
	}
	for _, c := range view.ListCats() {
		tx.recordChange(Change{Entity: domain.EntityCat, Action: domain.ActionDelete, Before: payloadOf(c)})
	}

	tx.state = next
	view = newTransactionView(&tx.state)
	for _, c := range view.ListCats() {
		tx.recordChange(Change{Entity: domain.EntityCat, Action: domain.ActionCreate, After: payloadOf(c)})
	}
	for _, m := range view.ListMissions() {
		tx.recordChange(Change{Entity: domain.EntityMission, Action: domain.ActionCreate, After: payloadOf(cloneMission(m))})
	}
	for _, t := range view.ListTargets() {
		tx.recordChange(Change{Entity: domain.EntityTarget, Action: domain.ActionCreate, After: payloadOf(t)})
	}
	return nil
}
