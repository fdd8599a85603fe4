package core

import (
	"context"
	"fmt"

	"spycats/pkg/domain"
)

const (
	missionTargetCountRuleName = "mission_target_count"
	missionCompletionRuleName  = "mission_completion"
)

// NewMissionTargetCountRule returns the rule enforcing the target count bounds
// on newly created missions.
func NewMissionTargetCountRule() domain.Rule {
	return missionTargetCountRule{}
}

type missionTargetCountRule struct{}

func (missionTargetCountRule) Name() string { return missionTargetCountRuleName }

func (missionTargetCountRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityMission || change.Action != domain.ActionCreate {
			continue
		}
		created, ok := domain.DecodeChangePayload[domain.Mission](change.After)
		if !ok {
			continue
		}
		mission, ok := view.FindMission(created.ID)
		if !ok {
			continue
		}
		if n := len(mission.Targets); n < domain.MinTargetsPerMission || n > domain.MaxTargetsPerMission {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     missionTargetCountRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("mission %s has %d targets; expected %d to %d", mission.ID, n, domain.MinTargetsPerMission, domain.MaxTargetsPerMission),
				Entity:   domain.EntityMission,
				EntityID: mission.ID,
			})
		}
	}
	return res, nil
}

// NewMissionCompletionRule returns the rule keeping the stored completion flag
// equal to the flag derived from the mission's targets. It also rejects any
// transition of a completed mission back to incomplete.
func NewMissionCompletionRule() domain.Rule {
	return missionCompletionRule{}
}

type missionCompletionRule struct{}

func (missionCompletionRule) Name() string { return missionCompletionRuleName }

func (missionCompletionRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(id, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     missionCompletionRuleName,
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   domain.EntityMission,
			EntityID: id,
		})
	}

	for _, change := range changes {
		if change.Entity != domain.EntityMission || change.Action != domain.ActionUpdate {
			continue
		}
		before, okBefore := domain.DecodeChangePayload[domain.Mission](change.Before)
		after, okAfter := domain.DecodeChangePayload[domain.Mission](change.After)
		if okBefore && okAfter && before.Complete && !after.Complete {
			block(after.ID, fmt.Sprintf("mission %s is complete and cannot be reopened", after.ID))
		}
	}

	for id := range touchedMissions(changes) {
		mission, ok := view.FindMission(id)
		if !ok {
			continue
		}
		if derived := domain.DeriveComplete(mission.Targets); derived != mission.Complete {
			block(id, fmt.Sprintf("mission %s complete=%t but its targets derive complete=%t", id, mission.Complete, derived))
		}
	}
	return res, nil
}
