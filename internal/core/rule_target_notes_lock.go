package core

import (
	"context"
	"fmt"

	"spycats/pkg/domain"
)

const (
	targetNotesLockRuleName  = "target_notes_lock"
	missionNotesLockRuleName = "mission_notes_lock"
)

// NewTargetNotesLockRule returns the rule freezing target notes once the
// target, or its owning mission, was complete before the transaction.
// Violations are reported under targetNotesLockRuleName or
// missionNotesLockRuleName depending on which lock applied.
func NewTargetNotesLockRule() domain.Rule {
	return targetNotesLockRule{}
}

type targetNotesLockRule struct{}

func (targetNotesLockRule) Name() string { return targetNotesLockRuleName }

func (targetNotesLockRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	// Mission state as of transaction start, for missions updated in this change set.
	missionBefore := make(map[string]domain.Mission)
	for _, change := range changes {
		if change.Entity != domain.EntityMission || change.Action != domain.ActionUpdate {
			continue
		}
		if m, ok := domain.DecodeChangePayload[domain.Mission](change.Before); ok {
			if _, seen := missionBefore[m.ID]; !seen {
				missionBefore[m.ID] = m
			}
		}
	}
	missionWasComplete := func(id string) bool {
		if m, ok := missionBefore[id]; ok {
			return m.Complete
		}
		m, ok := view.FindMission(id)
		return ok && m.Complete
	}

	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityTarget || change.Action != domain.ActionUpdate {
			continue
		}
		before, okBefore := domain.DecodeChangePayload[domain.Target](change.Before)
		after, okAfter := domain.DecodeChangePayload[domain.Target](change.After)
		if !okBefore || !okAfter || before.Notes == after.Notes {
			continue
		}
		switch {
		case before.Complete:
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     targetNotesLockRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("notes on completed target %s are locked", after.ID),
				Entity:   domain.EntityTarget,
				EntityID: after.ID,
			})
		case missionWasComplete(after.MissionID):
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     missionNotesLockRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("notes on target %s are locked because mission %s is complete", after.ID, after.MissionID),
				Entity:   domain.EntityTarget,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}
