package core

import (
	"context"
	"strings"

	"spycats/pkg/domain"
)

// TargetSpec describes a target supplied at mission creation.
type TargetSpec struct {
	Name    string
	Country string
	Notes   string
}

// CreateMissionRequest carries the fields accepted when creating a mission.
type CreateMissionRequest struct {
	CatID   *string
	Targets []TargetSpec
}

// TargetUpdate is a partial target update; nil fields are left untouched.
type TargetUpdate struct {
	Notes    *string
	Complete *bool
}

// MissionEngine owns the mission and target lifecycle. Every operation runs as
// a single store transaction so its checks and writes commit atomically.
type MissionEngine struct {
	svc *Service
}

// catBusy reports whether the cat holds an incomplete mission other than exceptID.
func catBusy(view TransactionView, catID, exceptID string) (Mission, bool) {
	for _, mission := range view.MissionsForCat(catID) {
		if mission.ID != exceptID && !mission.Complete {
			return mission, true
		}
	}
	return Mission{}, false
}

func catBusyError(catID string, holder Mission) error {
	return domain.NewError(domain.ErrCatBusy, EntityCat, catID, "cat %s is already on incomplete mission %s", catID, holder.ID)
}

func catNotFoundError(catID string) error {
	return domain.NewError(domain.ErrCatNotFound, EntityCat, catID, "cat %s not found", catID)
}

// CreateMission stores a mission with its targets. Checks run in order:
// target count, target fields, cat existence, cat availability.
func (e *MissionEngine) CreateMission(ctx context.Context, req CreateMissionRequest) (Mission, error) {
	var created Mission
	err := e.svc.run(ctx, "create_mission", EntityMission, func(ctx context.Context) (string, Result, error) {
		if n := len(req.Targets); n < domain.MinTargetsPerMission || n > domain.MaxTargetsPerMission {
			return "", Result{}, domain.NewError(domain.ErrTargetCountInvalid, EntityMission, "",
				"a mission needs %d to %d targets, got %d", domain.MinTargetsPerMission, domain.MaxTargetsPerMission, n)
		}
		targets := make([]Target, 0, len(req.Targets))
		for _, spec := range req.Targets {
			name := strings.TrimSpace(spec.Name)
			country := strings.TrimSpace(spec.Country)
			if err := validateText(EntityTarget, "target name", name); err != nil {
				return "", Result{}, err
			}
			if err := validateText(EntityTarget, "target country", country); err != nil {
				return "", Result{}, err
			}
			targets = append(targets, Target{Name: name, Country: country, Notes: spec.Notes})
		}

		res, err := e.svc.store.RunInTransaction(ctx, func(tx Transaction) error {
			mission := Mission{Targets: targets}
			if req.CatID != nil {
				catID := *req.CatID
				if _, ok := tx.FindCat(catID); !ok {
					return catNotFoundError(catID)
				}
				if holder, busy := catBusy(tx.Snapshot(), catID, ""); busy {
					return catBusyError(catID, holder)
				}
				mission.CatID = &catID
			}
			var err error
			created, err = tx.CreateMission(mission)
			return err
		})
		return created.ID, res, err
	})
	if err != nil {
		return Mission{}, err
	}
	return created, nil
}

// AssignCat links a cat to a mission that has none.
func (e *MissionEngine) AssignCat(ctx context.Context, missionID, catID string) (Mission, error) {
	var updated Mission
	err := e.svc.run(ctx, "assign_cat", EntityMission, func(ctx context.Context) (string, Result, error) {
		res, err := e.svc.store.RunInTransaction(ctx, func(tx Transaction) error {
			mission, ok := tx.FindMission(missionID)
			if !ok {
				return domain.NotFound(EntityMission, missionID)
			}
			if mission.CatID != nil {
				return domain.NewError(domain.ErrMissionAlreadyAssigned, EntityMission, missionID,
					"mission %s is already assigned to cat %s", missionID, *mission.CatID)
			}
			if _, ok := tx.FindCat(catID); !ok {
				return catNotFoundError(catID)
			}
			if holder, busy := catBusy(tx.Snapshot(), catID, missionID); busy {
				return catBusyError(catID, holder)
			}
			var err error
			updated, err = tx.UpdateMission(missionID, func(m *Mission) error {
				m.CatID = &catID
				return nil
			})
			return err
		})
		return missionID, res, err
	})
	if err != nil {
		return Mission{}, err
	}
	return updated, nil
}

// UpdateTarget applies a partial update to one of the mission's targets and
// recomputes the mission's completion flag. A completed mission stays
// completed: setting Complete=false on any of its targets fails with
// ErrValidationFailed and leaves the mission unchanged.
func (e *MissionEngine) UpdateTarget(ctx context.Context, missionID, targetID string, update TargetUpdate) (Mission, error) {
	var updated Mission
	err := e.svc.run(ctx, "update_target", EntityTarget, func(ctx context.Context) (string, Result, error) {
		res, err := e.svc.store.RunInTransaction(ctx, func(tx Transaction) error {
			mission, ok := tx.FindMission(missionID)
			if !ok {
				return domain.NotFound(EntityMission, missionID)
			}
			target, ok := tx.FindTarget(targetID)
			if !ok || target.MissionID != missionID {
				return domain.NotFound(EntityTarget, targetID)
			}

			if update.Notes != nil && *update.Notes != target.Notes {
				if target.Complete {
					return domain.NewError(domain.ErrNotesLockedOnCompletedTarget, EntityTarget, targetID,
						"notes on completed target %s are locked", targetID)
				}
				if mission.Complete {
					return domain.NewError(domain.ErrNotesLockedOnCompletedMission, EntityTarget, targetID,
						"notes on target %s are locked because mission %s is complete", targetID, missionID)
				}
			}
			if update.Complete != nil && !*update.Complete && target.Complete && mission.Complete {
				return validationFailed(EntityTarget, targetID, "target %s belongs to completed mission %s and cannot be reopened", targetID, missionID)
			}

			if _, err := tx.UpdateTarget(targetID, func(t *Target) error {
				if update.Notes != nil {
					t.Notes = *update.Notes
				}
				if update.Complete != nil {
					t.Complete = *update.Complete
				}
				return nil
			}); err != nil {
				return err
			}

			current, _ := tx.FindMission(missionID)
			if derived := domain.DeriveComplete(current.Targets); derived != current.Complete {
				var err error
				current, err = tx.UpdateMission(missionID, func(m *Mission) error {
					m.Complete = derived
					return nil
				})
				if err != nil {
					return err
				}
			}
			updated = current
			return nil
		})
		return targetID, res, err
	})
	if err != nil {
		return Mission{}, err
	}
	return updated, nil
}

// DeleteMission removes a mission that has no cat, together with its targets.
func (e *MissionEngine) DeleteMission(ctx context.Context, missionID string) error {
	return e.svc.run(ctx, "delete_mission", EntityMission, func(ctx context.Context) (string, Result, error) {
		res, err := e.svc.store.RunInTransaction(ctx, func(tx Transaction) error {
			mission, ok := tx.FindMission(missionID)
			if !ok {
				return domain.NotFound(EntityMission, missionID)
			}
			if mission.CatID != nil {
				return domain.NewError(domain.ErrCatAssigned, EntityMission, missionID,
					"mission %s is assigned to cat %s and cannot be deleted", missionID, *mission.CatID)
			}
			return tx.DeleteMission(missionID)
		})
		return missionID, res, err
	})
}

// Get returns a mission with its targets.
func (e *MissionEngine) Get(ctx context.Context, missionID string) (Mission, error) {
	var mission Mission
	err := e.svc.view(ctx, "get_mission", EntityMission, missionID, func(view TransactionView) error {
		found, ok := view.FindMission(missionID)
		if !ok {
			return domain.NotFound(EntityMission, missionID)
		}
		mission = found
		return nil
	})
	return mission, err
}

// List returns every mission ordered by creation time, targets embedded.
func (e *MissionEngine) List(ctx context.Context) ([]Mission, error) {
	var missions []Mission
	err := e.svc.view(ctx, "list_missions", EntityMission, "", func(view TransactionView) error {
		missions = view.ListMissions()
		return nil
	})
	return missions, err
}
