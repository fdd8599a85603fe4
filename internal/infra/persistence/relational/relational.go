// Package relational maps the domain snapshot onto the cats, missions and
// targets tables shared by the SQL backends. Statements are written in the
// common subset of SQLite and Postgres and bound through sqlx named queries.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"spycats/pkg/domain"
)

type catRow struct {
	ID                string          `db:"id"`
	Name              string          `db:"name"`
	YearsOfExperience int             `db:"years_of_experience"`
	Breed             string          `db:"breed"`
	Salary            decimal.Decimal `db:"salary"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

type missionRow struct {
	ID        string         `db:"id"`
	CatID     sql.NullString `db:"cat_id"`
	Complete  bool           `db:"complete"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

type targetRow struct {
	ID        string    `db:"id"`
	MissionID string    `db:"mission_id"`
	Name      string    `db:"name"`
	Country   string    `db:"country"`
	Notes     string    `db:"notes"`
	Complete  bool      `db:"complete"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func catToRow(c domain.Cat) catRow {
	return catRow{
		ID:                c.ID,
		Name:              c.Name,
		YearsOfExperience: c.YearsOfExperience,
		Breed:             c.Breed,
		Salary:            c.Salary,
		CreatedAt:         c.CreatedAt.UTC(),
		UpdatedAt:         c.UpdatedAt.UTC(),
	}
}

func (r catRow) toDomain() domain.Cat {
	return domain.Cat{
		Base:              domain.Base{ID: r.ID, CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC()},
		Name:              r.Name,
		YearsOfExperience: r.YearsOfExperience,
		Breed:             r.Breed,
		Salary:            r.Salary,
	}
}

func missionToRow(m domain.Mission) missionRow {
	row := missionRow{
		ID:        m.ID,
		Complete:  m.Complete,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	if m.CatID != nil {
		row.CatID = sql.NullString{String: *m.CatID, Valid: true}
	}
	return row
}

func (r missionRow) toDomain() domain.Mission {
	m := domain.Mission{
		Base:     domain.Base{ID: r.ID, CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC()},
		Complete: r.Complete,
	}
	if r.CatID.Valid {
		id := r.CatID.String
		m.CatID = &id
	}
	return m
}

func targetToRow(t domain.Target) targetRow {
	return targetRow{
		ID:        t.ID,
		MissionID: t.MissionID,
		Name:      t.Name,
		Country:   t.Country,
		Notes:     t.Notes,
		Complete:  t.Complete,
		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: t.UpdatedAt.UTC(),
	}
}

func (r targetRow) toDomain() domain.Target {
	return domain.Target{
		Base:      domain.Base{ID: r.ID, CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC()},
		MissionID: r.MissionID,
		Name:      r.Name,
		Country:   r.Country,
		Notes:     r.Notes,
		Complete:  r.Complete,
	}
}

const (
	selectCats     = `SELECT id, name, years_of_experience, breed, salary, created_at, updated_at FROM cats`
	selectMissions = `SELECT id, cat_id, complete, created_at, updated_at FROM missions`
	selectTargets  = `SELECT id, mission_id, name, country, notes, complete, created_at, updated_at FROM targets`

	upsertCat = `INSERT INTO cats (id, name, years_of_experience, breed, salary, created_at, updated_at)
VALUES (:id, :name, :years_of_experience, :breed, :salary, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET name = excluded.name, years_of_experience = excluded.years_of_experience,
breed = excluded.breed, salary = excluded.salary, updated_at = excluded.updated_at`

	upsertMission = `INSERT INTO missions (id, cat_id, complete, created_at, updated_at)
VALUES (:id, :cat_id, :complete, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET cat_id = excluded.cat_id, complete = excluded.complete, updated_at = excluded.updated_at`

	upsertTarget = `INSERT INTO targets (id, mission_id, name, country, notes, complete, created_at, updated_at)
VALUES (:id, :mission_id, :name, :country, :notes, :complete, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET notes = excluded.notes, complete = excluded.complete, updated_at = excluded.updated_at`
)

var deleteStatements = map[domain.EntityType]string{
	domain.EntityCat:     `DELETE FROM cats WHERE id = ?`,
	domain.EntityMission: `DELETE FROM missions WHERE id = ?`,
	domain.EntityTarget:  `DELETE FROM targets WHERE id = ?`,
}

// Load reads every table into a snapshot suitable for memory.Store.ImportState.
func Load(ctx context.Context, db sqlx.QueryerContext) (domain.Snapshot, error) {
	snapshot := domain.Snapshot{
		Cats:     make(map[string]domain.Cat),
		Missions: make(map[string]domain.Mission),
		Targets:  make(map[string]domain.Target),
	}

	var cats []catRow
	if err := sqlx.SelectContext(ctx, db, &cats, selectCats); err != nil {
		return domain.Snapshot{}, fmt.Errorf("select cats: %w", err)
	}
	for _, row := range cats {
		snapshot.Cats[row.ID] = row.toDomain()
	}

	var missions []missionRow
	if err := sqlx.SelectContext(ctx, db, &missions, selectMissions); err != nil {
		return domain.Snapshot{}, fmt.Errorf("select missions: %w", err)
	}
	for _, row := range missions {
		snapshot.Missions[row.ID] = row.toDomain()
	}

	var targets []targetRow
	if err := sqlx.SelectContext(ctx, db, &targets, selectTargets); err != nil {
		return domain.Snapshot{}, fmt.Errorf("select targets: %w", err)
	}
	for _, row := range targets {
		snapshot.Targets[row.ID] = row.toDomain()
	}
	return snapshot, nil
}

// Apply replays a committed change set in order. Changes must arrive in the
// order the memory store recorded them so parent rows precede children.
func Apply(ctx context.Context, tx sqlx.ExtContext, changes []domain.Change) error {
	for i, change := range changes {
		if err := applyChange(ctx, tx, change); err != nil {
			return fmt.Errorf("apply change %d (%s %s): %w", i, change.Action, change.Entity, err)
		}
	}
	return nil
}

func applyChange(ctx context.Context, tx sqlx.ExtContext, change domain.Change) error {
	if change.Action == domain.ActionDelete {
		id, err := changedID(change)
		if err != nil {
			return err
		}
		stmt, ok := deleteStatements[change.Entity]
		if !ok {
			return fmt.Errorf("unsupported entity %q", change.Entity)
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(stmt), id)
		return err
	}

	switch change.Entity {
	case domain.EntityCat:
		cat, ok := domain.DecodeChangePayload[domain.Cat](change.After)
		if !ok {
			return errors.New("decode cat payload")
		}
		_, err := sqlx.NamedExecContext(ctx, tx, upsertCat, catToRow(cat))
		return err
	case domain.EntityMission:
		mission, ok := domain.DecodeChangePayload[domain.Mission](change.After)
		if !ok {
			return errors.New("decode mission payload")
		}
		_, err := sqlx.NamedExecContext(ctx, tx, upsertMission, missionToRow(mission))
		return err
	case domain.EntityTarget:
		target, ok := domain.DecodeChangePayload[domain.Target](change.After)
		if !ok {
			return errors.New("decode target payload")
		}
		_, err := sqlx.NamedExecContext(ctx, tx, upsertTarget, targetToRow(target))
		return err
	default:
		return fmt.Errorf("unsupported entity %q", change.Entity)
	}
}

func changedID(change domain.Change) (string, error) {
	base, ok := domain.DecodeChangePayload[domain.Base](change.Before)
	if !ok || base.ID == "" {
		return "", fmt.Errorf("decode %s id", change.Entity)
	}
	return base.ID, nil
}

// CommitHook returns a hook for memory.WithCommitHook that mirrors each
// accepted change set into db within a single SQL transaction.
func CommitHook(db *sqlx.DB) func(ctx context.Context, changes []domain.Change) error {
	return func(ctx context.Context, changes []domain.Change) error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		if err := Apply(ctx, tx, changes); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		committed = true
		return nil
	}
}
