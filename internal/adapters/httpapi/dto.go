package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"spycats/internal/core"
)

type catResponse struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	YearsOfExperience int       `json:"years_of_experience"`
	Breed             string    `json:"breed"`
	Salary            string    `json:"salary"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func newCatResponse(c core.Cat) catResponse {
	return catResponse{
		ID:                c.ID,
		Name:              c.Name,
		YearsOfExperience: c.YearsOfExperience,
		Breed:             c.Breed,
		Salary:            c.Salary.StringFixed(2),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

type targetResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Notes     string    `json:"notes"`
	Complete  bool      `json:"complete"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type missionResponse struct {
	ID         string           `json:"id"`
	Cat        *string          `json:"cat"`
	CatDetails *catResponse     `json:"cat_details"`
	Targets    []targetResponse `json:"targets"`
	Complete   bool             `json:"complete"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// newMissionResponse renders m; cats supplies cat_details when the referenced
// cat is known.
func newMissionResponse(m core.Mission, cats map[string]core.Cat) missionResponse {
	out := missionResponse{
		ID:        m.ID,
		Cat:       m.CatID,
		Targets:   make([]targetResponse, 0, len(m.Targets)),
		Complete:  m.Complete,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.CatID != nil {
		if cat, ok := cats[*m.CatID]; ok {
			details := newCatResponse(cat)
			out.CatDetails = &details
		}
	}
	for _, t := range m.Targets {
		out.Targets = append(out.Targets, targetResponse{
			ID:        t.ID,
			Name:      t.Name,
			Country:   t.Country,
			Notes:     t.Notes,
			Complete:  t.Complete,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		})
	}
	return out
}

type createCatRequest struct {
	Name              string           `json:"name"`
	YearsOfExperience *int             `json:"years_of_experience"`
	Breed             string           `json:"breed"`
	Salary            *decimal.Decimal `json:"salary"`
}

// validate rejects payloads that omit numeric fields, which would otherwise
// decode as zero.
func (r createCatRequest) validate() error {
	if r.YearsOfExperience == nil {
		return badRequest("years_of_experience is required")
	}
	if r.Salary == nil {
		return badRequest("salary is required")
	}
	return nil
}

// updateCatRequest accepts a full cat payload; only salary is applied.
type updateCatRequest struct {
	Name              *string          `json:"name"`
	YearsOfExperience *int             `json:"years_of_experience"`
	Breed             *string          `json:"breed"`
	Salary            *decimal.Decimal `json:"salary"`
}

type targetSpecRequest struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	Notes   string `json:"notes"`
}

type createMissionRequest struct {
	Cat     *string             `json:"cat"`
	Targets []targetSpecRequest `json:"targets"`
}

type assignCatRequest struct {
	CatID string `json:"cat_id"`
}

type updateTargetRequest struct {
	Notes    *string `json:"notes"`
	Complete *bool   `json:"complete"`
}

type page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
