package core

import (
	"context"
	"strings"

	"spycats/pkg/domain"
)

// BreedValidator confirms a breed name against an external catalog. A lookup
// that cannot be completed returns an error of kind domain.ErrLookupUnavailable.
type BreedValidator interface {
	IsValidBreed(ctx context.Context, name string) (bool, error)
}

// BreedValidatorFunc adapts a function to BreedValidator.
type BreedValidatorFunc func(ctx context.Context, name string) (bool, error)

// IsValidBreed implements BreedValidator.
func (f BreedValidatorFunc) IsValidBreed(ctx context.Context, name string) (bool, error) {
	return f(ctx, name)
}

// StaticBreeds returns a validator backed by a fixed, case-insensitive list.
func StaticBreeds(names ...string) BreedValidator {
	known := make(map[string]struct{}, len(names))
	for _, name := range names {
		known[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return BreedValidatorFunc(func(_ context.Context, name string) (bool, error) {
		_, ok := known[strings.ToLower(strings.TrimSpace(name))]
		return ok, nil
	})
}

// unavailableBreeds fails every lookup; services built without a validator
// refuse to admit breeds they cannot verify.
type unavailableBreeds struct{}

func (unavailableBreeds) IsValidBreed(context.Context, string) (bool, error) {
	return false, domain.NewError(domain.ErrLookupUnavailable, domain.EntityCat, "", "no breed catalog configured")
}
