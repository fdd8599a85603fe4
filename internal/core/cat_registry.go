package core

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"spycats/pkg/domain"
)

// Field limits applied to cat and target text fields and to salaries.
const (
	MaxNameLength = 255
	salaryScale   = 2
)

// maxSalary is the first value that no longer fits ten digits with two decimals.
var maxSalary = decimal.New(1, 8)

// CreateCatRequest carries the fields accepted when registering a cat.
type CreateCatRequest struct {
	Name              string
	YearsOfExperience int
	Breed             string
	Salary            decimal.Decimal
}

// CatUpdate is a partial cat update. Only Salary is applied; the other fields
// are accepted so callers can pass a full payload and are ignored.
type CatUpdate struct {
	Name              *string
	YearsOfExperience *int
	Breed             *string
	Salary            *decimal.Decimal
}

// CatRegistry manages cat records.
type CatRegistry struct {
	svc *Service
}

func validationFailed(entity EntityType, id, format string, args ...any) error {
	return domain.NewError(domain.ErrValidationFailed, entity, id, format, args...)
}

func validateText(entity EntityType, field, value string) error {
	switch {
	case strings.TrimSpace(value) == "":
		return validationFailed(entity, "", "%s must not be blank", field)
	case len(value) > MaxNameLength:
		return validationFailed(entity, "", "%s must be at most %d characters", field, MaxNameLength)
	}
	return nil
}

func validateSalary(id string, salary decimal.Decimal) error {
	switch {
	case salary.IsNegative():
		return validationFailed(EntityCat, id, "salary must not be negative")
	case !salary.Equal(salary.Round(salaryScale)):
		return validationFailed(EntityCat, id, "salary must have at most %d decimal places", salaryScale)
	case salary.GreaterThanOrEqual(maxSalary):
		return validationFailed(EntityCat, id, "salary must be less than %s", maxSalary)
	}
	return nil
}

// Create validates the request, confirms the breed with the catalog and then
// persists the cat. Nothing is written when the breed cannot be verified.
func (r *CatRegistry) Create(ctx context.Context, req CreateCatRequest) (Cat, error) {
	var created Cat
	err := r.svc.run(ctx, "create_cat", EntityCat, func(ctx context.Context) (string, Result, error) {
		name := strings.TrimSpace(req.Name)
		breed := strings.TrimSpace(req.Breed)
		if err := validateText(EntityCat, "name", name); err != nil {
			return "", Result{}, err
		}
		if err := validateText(EntityCat, "breed", breed); err != nil {
			return "", Result{}, err
		}
		if req.YearsOfExperience < 0 {
			return "", Result{}, validationFailed(EntityCat, "", "years of experience must not be negative")
		}
		if err := validateSalary("", req.Salary); err != nil {
			return "", Result{}, err
		}

		ok, err := r.svc.breeds.IsValidBreed(ctx, breed)
		if err != nil {
			if domain.KindOf(err) == "" {
				err = &domain.Error{Kind: domain.ErrLookupUnavailable, Entity: EntityCat, Message: "breed lookup unavailable", Err: err}
			}
			return "", Result{}, err
		}
		if !ok {
			return "", Result{}, domain.NewError(domain.ErrBreedInvalid, EntityCat, "", "%q is not a recognized cat breed", breed)
		}

		res, err := r.svc.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateCat(Cat{
				Name:              name,
				YearsOfExperience: req.YearsOfExperience,
				Breed:             breed,
				Salary:            req.Salary,
			})
			return err
		})
		return created.ID, res, err
	})
	if err != nil {
		return Cat{}, err
	}
	return created, nil
}

// UpdateSalary applies update.Salary to the cat. A nil salary leaves the cat
// unchanged and returns its current state.
func (r *CatRegistry) UpdateSalary(ctx context.Context, id string, update CatUpdate) (Cat, error) {
	if update.Salary == nil {
		return r.Get(ctx, id)
	}
	salary := *update.Salary
	var updated Cat
	err := r.svc.run(ctx, "update_cat_salary", EntityCat, func(ctx context.Context) (string, Result, error) {
		if err := validateSalary(id, salary); err != nil {
			return id, Result{}, err
		}
		res, err := r.svc.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateCat(id, func(c *Cat) error {
				c.Salary = salary
				return nil
			})
			return err
		})
		return id, res, err
	})
	if err != nil {
		return Cat{}, err
	}
	return updated, nil
}

// Delete removes the cat. Missions that referenced it keep existing with no cat.
func (r *CatRegistry) Delete(ctx context.Context, id string) error {
	return r.svc.run(ctx, "delete_cat", EntityCat, func(ctx context.Context) (string, Result, error) {
		res, err := r.svc.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteCat(id)
		})
		return id, res, err
	})
}

// Get returns a cat by id.
func (r *CatRegistry) Get(ctx context.Context, id string) (Cat, error) {
	var cat Cat
	err := r.svc.view(ctx, "get_cat", EntityCat, id, func(view TransactionView) error {
		found, ok := view.FindCat(id)
		if !ok {
			return domain.NotFound(EntityCat, id)
		}
		cat = found
		return nil
	})
	return cat, err
}

// List returns every cat ordered by creation time.
func (r *CatRegistry) List(ctx context.Context) ([]Cat, error) {
	var cats []Cat
	err := r.svc.view(ctx, "list_cats", EntityCat, "", func(view TransactionView) error {
		cats = view.ListCats()
		return nil
	})
	return cats, err
}
