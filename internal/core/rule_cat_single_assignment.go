package core

import (
	"context"
	"fmt"

	"spycats/pkg/domain"
)

const catSingleAssignmentRuleName = "cat_single_assignment"

// NewCatSingleAssignmentRule returns the rule blocking any commit that would
// leave a cat linked to more than one incomplete mission.
func NewCatSingleAssignmentRule() domain.Rule {
	return catSingleAssignmentRule{}
}

type catSingleAssignmentRule struct{}

func (catSingleAssignmentRule) Name() string { return catSingleAssignmentRuleName }

func (catSingleAssignmentRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	cats := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityMission {
			continue
		}
		if m, ok := domain.DecodeChangePayload[domain.Mission](change.After); ok && m.CatID != nil {
			cats[*m.CatID] = struct{}{}
		}
	}

	res := domain.Result{}
	for catID := range cats {
		active := 0
		for _, mission := range view.MissionsForCat(catID) {
			if !mission.Complete {
				active++
			}
		}
		if active > 1 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     catSingleAssignmentRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("cat %s is linked to %d incomplete missions", catID, active),
				Entity:   domain.EntityCat,
				EntityID: catID,
			})
		}
	}
	return res, nil
}
