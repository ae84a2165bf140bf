// Package scenarios catalogues the regression scenarios so they can be run
// outside of go test.
package scenarios

import (
	"context"

	"gorm.io/gorm"

	"github.com/mpyw/gorm-view-regressions/database"
	"github.com/mpyw/gorm-view-regressions/shadowcolumn"
	"github.com/mpyw/gorm-view-regressions/virtualview"
)

// Category groups scenarios by the kind of SQL generation they exercise.
type Category string

const (
	// CategoryVirtualEntity - view entities filtered through relations
	CategoryVirtualEntity Category = "virtual-entity"

	// CategoryAliasPrefix - filter columns resolved against joined aliases
	CategoryAliasPrefix Category = "alias-prefix"
)

// Priority orders scenarios in reports.
type Priority int

const (
	PriorityHigh   Priority = 1 // Reported defect
	PriorityMedium Priority = 2 // Variation of a reported defect
	PriorityLow    Priority = 3 // Control case
)

// Outcome is what a scenario run produced.
type Outcome struct {
	Rows    int
	Count   int64
	Results interface{}
}

// Scenario is one regression case.
type Scenario struct {
	Name          string
	Category      Category
	Priority      Priority
	ExpectedRows  int
	ExpectedCount int64 // -1 if the scenario does not count
	Notes         string
	Schema        database.Schema
	// Run seeds db, which already has Schema, and runs the query under test.
	Run func(ctx context.Context, db *gorm.DB) (Outcome, error)
}

// Passed reports whether o is what s expects.
func (s Scenario) Passed(o Outcome) bool {
	if o.Rows != s.ExpectedRows {
		return false
	}
	return s.ExpectedCount < 0 || o.Count == s.ExpectedCount
}

// Scenarios is every catalogued regression case.
var Scenarios = []Scenario{
	// === Virtual entity through nested ManyToMany ===
	{
		Name: "virtual-entity/no-limit", Category: CategoryVirtualEntity, Priority: PriorityLow,
		ExpectedRows: 2, ExpectedCount: 2, Schema: virtualview.Schema(),
		Notes: "Control: OR of two nested many-to-many paths over a UNION view",
		Run:   searchTagged(0),
	},
	{
		Name: "virtual-entity/limit", Category: CategoryVirtualEntity, Priority: PriorityHigh,
		ExpectedRows: 2, ExpectedCount: 2, Schema: virtualview.Schema(),
		Notes: "Limit forces a paged query; the view's correlation column must not be empty",
		Run:   searchTagged(10),
	},

	// === Shadowed non-persisted column ===
	{
		Name: "alias-prefix/select-in", Category: CategoryAliasPrefix, Priority: PriorityLow,
		ExpectedRows: 2, ExpectedCount: 2, Schema: shadowcolumn.Schema(),
		Notes: "Control: literal owner_id key with relations loaded by separate queries",
		Run:   findByOwner(shadowcolumn.ByOwnerKey, shadowcolumn.SelectIn),
	},
	{
		Name: "alias-prefix/joined", Category: CategoryAliasPrefix, Priority: PriorityHigh,
		ExpectedRows: 2, ExpectedCount: 2, Schema: shadowcolumn.Schema(),
		Notes: "Literal owner_id key shadows a non-persisted field and exists on the joined folders alias",
		Run:   findByOwner(shadowcolumn.ByOwnerKey, shadowcolumn.Joined),
	},
	{
		Name: "alias-prefix/joined-qualified", Category: CategoryAliasPrefix, Priority: PriorityMedium,
		ExpectedRows: 2, ExpectedCount: 2, Schema: shadowcolumn.Schema(),
		Notes: "owner_id qualified with the current table explicitly, joined folders alias",
		Run:   findByOwner(shadowcolumn.ByOwner, shadowcolumn.Joined),
	},
}

func searchTagged(limit int) func(ctx context.Context, db *gorm.DB) (Outcome, error) {
	return func(ctx context.Context, db *gorm.DB) (Outcome, error) {
		uow := database.Fork(ctx, db)
		if _, err := virtualview.Seed(uow, "geography"); err != nil {
			return Outcome{}, err
		}
		results, count, err := virtualview.Search(ctx, uow.Fork().DB(), "geography", limit)
		return Outcome{Rows: len(results), Count: count, Results: results}, err
	}
}

func findByOwner(filter func(ownerID uint) func(*gorm.DB) *gorm.DB, strategy shadowcolumn.Strategy) func(ctx context.Context, db *gorm.DB) (Outcome, error) {
	return func(ctx context.Context, db *gorm.DB) (Outcome, error) {
		uow := database.Fork(ctx, db)
		f, err := shadowcolumn.Seed(uow)
		if err != nil {
			return Outcome{}, err
		}
		questions, count, err := shadowcolumn.Find(ctx, uow.Fork().DB(), filter(f.Owner.ID), strategy)
		return Outcome{Rows: len(questions), Count: count, Results: questions}, err
	}
}

// Lookup returns the scenario called name.
func Lookup(name string) (Scenario, bool) {
	for _, s := range Scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// ByCategory returns scenarios of category c.
func ByCategory(c Category) []Scenario {
	var result []Scenario
	for _, s := range Scenarios {
		if s.Category == c {
			result = append(result, s)
		}
	}
	return result
}

// HighPriority returns the scenarios that reproduce a reported defect.
func HighPriority() []Scenario {
	var result []Scenario
	for _, s := range Scenarios {
		if s.Priority == PriorityHigh {
			result = append(result, s)
		}
	}
	return result
}
