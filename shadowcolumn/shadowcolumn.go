// Package shadowcolumn reproduces filtering on a column whose name is shared
// by a non-persisted field while relations are populated.
//
// questions.owner_id is written through OwnerRef. Question also declares an
// OwnerID field that gorm ignores and whose default column name is also
// owner_id. A filter keyed "owner_id" must resolve to questions.owner_id
// through OwnerRef, never be dropped with the ignored field, and never bind to
// folders.owner_id once joined population brings folders into the FROM clause.
// gorm qualifies the key with the questions table in both strategies.
package shadowcolumn

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mpyw/gorm-view-regressions/database"
)

// OwnerColumn is the column shared by questions and folders.
const OwnerColumn = "owner_id"

// Owner owns folders and questions.
type Owner struct {
	ID   uint
	Name string
}

// Folder groups questions of one owner. Its own owner_id column is what a
// joined query must not resolve the questions filter against.
type Folder struct {
	ID      uint
	Name    string
	OwnerID uint
	Owner   *Owner
}

// Question persists its owner through OwnerRef and exposes the same value as
// the non-persisted OwnerID.
type Question struct {
	ID       uint
	Text     string
	OwnerRef uint   `gorm:"column:owner_id;not null"`
	Owner    *Owner `gorm:"foreignKey:OwnerRef"`
	FolderID *uint
	Folder   *Folder

	// OwnerID is not persisted; AfterFind copies it from OwnerRef.
	OwnerID uint `gorm:"-"`
}

// AfterFind fills the non-persisted OwnerID.
func (q *Question) AfterFind(_ *gorm.DB) error {
	q.OwnerID = q.OwnerRef
	return nil
}

// Strategy selects how Owner and Folder are populated.
type Strategy int

const (
	// SelectIn loads each relation with its own query.
	SelectIn Strategy = iota
	// Joined loads both relations in the main query through aliased joins.
	Joined
)

func (s Strategy) String() string {
	switch s {
	case SelectIn:
		return "select-in"
	case Joined:
		return "joined"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Populate is the relation set loaded with every find.
var Populate = []string{"owner", "folder"}

// Schema lists the tables of this scenario.
func Schema() database.Schema {
	return database.Schema{
		Models: []interface{}{&Owner{}, &Folder{}, &Question{}},
	}
}

// Fixture is what Seed wrote.
type Fixture struct {
	Owner     *Owner
	Folder    *Folder
	Questions []*Question
}

// Seed writes one owner, one folder of that owner, and two questions of that
// owner filed in that folder.
func Seed(uow *database.UnitOfWork) (*Fixture, error) {
	owner := &Owner{Name: "Alice"}
	folder := &Folder{Name: "Geography", Owner: owner}
	questions := []*Question{
		{Text: "What is the capital of France?", Owner: owner, Folder: folder},
		{Text: "What is the capital of Japan?", Owner: owner, Folder: folder},
	}

	uow.Persist(owner, folder)
	for _, q := range questions {
		uow.Persist(q)
	}
	if err := uow.Flush(); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return &Fixture{Owner: owner, Folder: folder, Questions: questions}, nil
}

// ByOwner filters questions on owner_id, qualified with the questions table
// explicitly rather than through gorm's key resolution.
func ByOwner(ownerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: OwnerColumn},
			Value:  ownerID,
		})
	}
}

// ByOwnerKey filters with the literal key "owner_id", left for gorm to resolve
// against the persisted OwnerRef field.
func ByOwnerKey(ownerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(map[string]interface{}{OwnerColumn: ownerID})
	}
}

// FindByOwner finds and counts the questions of ownerID, filtered with the
// literal owner_id key, with Owner and Folder populated by strategy.
func FindByOwner(ctx context.Context, db *gorm.DB, ownerID uint, strategy Strategy) ([]Question, int64, error) {
	return Find(ctx, db, ByOwnerKey(ownerID), strategy)
}

// Find finds and counts the questions matching filter with Owner and Folder
// populated by strategy.
func Find(ctx context.Context, db *gorm.DB, filter func(*gorm.DB) *gorm.DB, strategy Strategy) ([]Question, int64, error) {
	opts := database.FindOptions{OrderBy: "questions.id"}
	switch strategy {
	case Joined:
		opts.JoinPopulate = Populate
	default:
		opts.Populate = Populate
	}
	return database.FindAndCount[Question](ctx, db.Model(&Question{}).Scopes(filter), opts)
}
