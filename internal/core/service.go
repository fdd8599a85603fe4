package core

import (
	"context"
	"errors"

	"spycats/internal/infra/persistence/memory"
	"spycats/pkg/domain"
)

// Service wires the cat registry and mission engine to a persistent store and
// the ambient logging, metrics, tracing and audit sinks.
type Service struct {
	store   PersistentStore
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	clock   Clock
	breeds  BreedValidator

	cats     *CatRegistry
	missions *MissionEngine
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
		clock:   systemClock{},
		breeds:  unavailableBreeds{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cats = &CatRegistry{svc: s}
	s.missions = &MissionEngine{svc: s}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
// A nil engine falls back to NewDefaultRulesEngine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	svc := NewService(nil, opts...)
	svc.store = memory.NewStore(engine, memory.WithClock(svc.clock.Now))
	return svc
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Cats returns the cat registry.
func (s *Service) Cats() *CatRegistry {
	return s.cats
}

// Missions returns the mission engine.
func (s *Service) Missions() *MissionEngine {
	return s.missions
}

// operation is the body of an instrumented call. It reports the id of the
// record it acted on (for audit and logs) and any rule evaluation result.
type operation func(ctx context.Context) (entityID string, res Result, err error)

// run executes op inside a span and records metrics, audit and logs for it.
func (s *Service) run(ctx context.Context, name string, entity EntityType, op operation) error {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, name)

	id, res, err := op(ctx)
	err = translateRuleViolation(err)

	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, name, err == nil, duration)

	entry := AuditEntry{
		Operation:  name,
		Entity:     entity,
		EntityID:   id,
		Status:     AuditStatusSuccess,
		Violations: res.Violations,
		Duration:   duration,
		Timestamp:  start,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		entry.ErrorKind = string(domain.KindOf(err))
	}
	s.audit.Record(ctx, entry)

	for _, v := range res.Violations {
		if v.Severity == SeverityWarn {
			s.logger.Warn("rule warning", "operation", name, "rule", v.Rule, "entity", string(v.Entity), "entity_id", v.EntityID, "message", v.Message)
		}
	}
	switch kind := domain.KindOf(err); {
	case err == nil:
		s.logger.Debug("operation succeeded", "operation", name, "entity", string(entity), "entity_id", id)
	case kind == "" || kind == domain.ErrLookupUnavailable:
		s.logger.Error("operation failed", "operation", name, "entity", string(entity), "entity_id", id, "error", err)
	default:
		s.logger.Warn("operation rejected", "operation", name, "entity", string(entity), "entity_id", id, "error_kind", string(kind), "error", err)
	}
	return err
}

// view runs a read-only operation with the same instrumentation as run.
func (s *Service) view(ctx context.Context, name string, entity EntityType, id string, fn func(TransactionView) error) error {
	return s.run(ctx, name, entity, func(ctx context.Context) (string, Result, error) {
		return id, Result{}, s.store.View(ctx, fn)
	})
}

// ruleKinds maps blocking violations raised by the commit-time backstop to the
// failure kind callers would have received from the engine's own checks.
var ruleKinds = map[string]domain.ErrorKind{
	catSingleAssignmentRuleName: domain.ErrCatBusy,
	missionTargetCountRuleName:  domain.ErrTargetCountInvalid,
	missionCompletionRuleName:   domain.ErrValidationFailed,
	targetNotesLockRuleName:     domain.ErrNotesLockedOnCompletedTarget,
	missionNotesLockRuleName:    domain.ErrNotesLockedOnCompletedMission,
}

func translateRuleViolation(err error) error {
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		return err
	}
	blocking := rve.Result.Blocking()
	if len(blocking) == 0 {
		return err
	}
	v := blocking[0]
	kind, ok := ruleKinds[v.Rule]
	if !ok {
		kind = domain.ErrValidationFailed
	}
	return &domain.Error{Kind: kind, Entity: v.Entity, ID: v.EntityID, Message: v.Message, Err: rve}
}
