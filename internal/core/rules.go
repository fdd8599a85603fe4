package core

import "spycats/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
// The rules re-check, before commit, the invariants the engine already
// enforces while building a transaction.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewCatSingleAssignmentRule())
	engine.Register(NewMissionTargetCountRule())
	engine.Register(NewMissionCompletionRule())
	engine.Register(NewTargetNotesLockRule())
	return engine
}

// touchedMissions collects the ids of missions affected by a change set,
// including the owners of changed targets.
func touchedMissions(changes []Change) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, change := range changes {
		switch change.Entity {
		case EntityMission:
			for _, payload := range []ChangePayload{change.Before, change.After} {
				if m, ok := domain.DecodeChangePayload[Mission](payload); ok && m.ID != "" {
					ids[m.ID] = struct{}{}
				}
			}
		case EntityTarget:
			for _, payload := range []ChangePayload{change.Before, change.After} {
				if t, ok := domain.DecodeChangePayload[Target](payload); ok && t.MissionID != "" {
					ids[t.MissionID] = struct{}{}
				}
			}
		}
	}
	return ids
}
