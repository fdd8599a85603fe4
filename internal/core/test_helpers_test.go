package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// steppingClock advances by one second on every reading so creation order is
// observable in timestamps.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

var testBreeds = StaticBreeds("Siamese", "Bengal", "Maine Coon")

func newTestService(opts ...Option) *Service {
	base := []Option{WithClock(newSteppingClock()), WithBreedValidator(testBreeds)}
	return NewInMemoryService(nil, append(base, opts...)...)
}

func mustCreateCat(t *testing.T, svc *Service, name string) Cat {
	t.Helper()
	cat, err := svc.Cats().Create(context.Background(), CreateCatRequest{
		Name:              name,
		YearsOfExperience: 3,
		Breed:             "Siamese",
		Salary:            decimal.RequireFromString("50000.00"),
	})
	if err != nil {
		t.Fatalf("create cat %s: %v", name, err)
	}
	return cat
}

func mustCreateMission(t *testing.T, svc *Service, catID *string, names ...string) Mission {
	t.Helper()
	specs := make([]TargetSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, TargetSpec{Name: name, Country: "Germany"})
	}
	mission, err := svc.Missions().CreateMission(context.Background(), CreateMissionRequest{CatID: catID, Targets: specs})
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}
	return mission
}

func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func targetByName(t *testing.T, mission Mission, name string) Target {
	t.Helper()
	for _, target := range mission.Targets {
		if target.Name == name {
			return target
		}
	}
	t.Fatalf("target %s not found on mission %s", name, mission.ID)
	return Target{}
}
