// Package domain defines the persistent entities, value types, error taxonomy
// and rule evaluation primitives used by spycats.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityCat identifies a spy cat agent record.
	EntityCat EntityType = "cat"
	// EntityMission identifies a mission record.
	EntityMission EntityType = "mission"
	// EntityTarget identifies a surveillance target owned by a mission.
	EntityTarget EntityType = "target"
)

// MissionState is the lifecycle position of a mission. It is derived from the
// cat reference and the completion flag and is never stored.
type MissionState string

// Mission lifecycle states.
const (
	MissionUnassigned MissionState = "unassigned"
	MissionAssigned   MissionState = "assigned"
	MissionCompleted  MissionState = "completed"
)

// Target count bounds applied when a mission is created.
const (
	MinTargetsPerMission = 1
	MaxTargetsPerMission = 3
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cat is a registered operative. Only Salary may change after creation.
type Cat struct {
	Base
	Name              string          `json:"name"`
	YearsOfExperience int             `json:"years_of_experience"`
	Breed             string          `json:"breed"`
	Salary            decimal.Decimal `json:"salary"`
}

// Mission is a unit of work assigned to zero or one cat. Targets are owned by
// the mission and are decorated onto it when read from a store.
type Mission struct {
	Base
	CatID    *string  `json:"cat"`
	Complete bool     `json:"complete"`
	Targets  []Target `json:"targets"`
}

// State reports the lifecycle position of the mission.
func (m Mission) State() MissionState {
	switch {
	case m.Complete:
		return MissionCompleted
	case m.CatID != nil:
		return MissionAssigned
	default:
		return MissionUnassigned
	}
}

// AssignedTo reports whether the mission references the supplied cat.
func (m Mission) AssignedTo(catID string) bool {
	return m.CatID != nil && *m.CatID == catID
}

// Target is a surveillance objective belonging to exactly one mission.
type Target struct {
	Base
	MissionID string `json:"mission_id"`
	Name      string `json:"name"`
	Country   string `json:"country"`
	Notes     string `json:"notes"`
	Complete  bool   `json:"complete"`
}

// Snapshot captures a point-in-time copy of every record held by a store.
type Snapshot struct {
	Cats     map[string]Cat     `json:"cats"`
	Missions map[string]Mission `json:"missions"`
	Targets  map[string]Target  `json:"targets"`
}

// Change describes a mutation applied to an entity during a transaction.
// Before is undefined for creates and After is undefined for deletes.
type Change struct {
	Entity EntityType
	Action Action
	Before ChangePayload
	After  ChangePayload
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Blocking returns only the violations that prevent a commit.
func (r Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	blocking := e.Result.Blocking()
	if len(blocking) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + blocking[0].Message
}
