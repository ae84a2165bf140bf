// Package virtualview reproduces filtering a view entity through nested
// many-to-many relations.
//
// search_results is a UNION ALL over questions and reference_materials with
// a synthesized text id ("questions-1") and one nullable foreign key per
// source. Each source carries tags through its own join table, so a search
// for a tag has to walk search_results -> source -> join table -> tags twice
// and OR the two paths together.
package virtualview

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mpyw/gorm-view-regressions/database"
)

// Tag labels questions and reference materials.
type Tag struct {
	ID   uint
	Name string
}

// Question is one source of search results.
type Question struct {
	ID     uint
	Text   string
	Answer string
	Tags   []*Tag `gorm:"many2many:question_tags;joinForeignKey:QuestionID;joinReferences:TagID"`
}

// ReferenceMaterial is the other source of search results.
type ReferenceMaterial struct {
	ID   uint
	Text string
	Tags []*Tag `gorm:"many2many:reference_material_tags;joinForeignKey:ReferenceMaterialID;joinReferences:TagID"`
}

// SearchResult is a row of the search_results view. Exactly one of
// QuestionID and ReferenceMaterialID is set.
type SearchResult struct {
	ID                  string `gorm:"primaryKey;type:text"`
	QuestionID          *uint
	Question            *Question `gorm:"foreignKey:QuestionID"`
	ReferenceMaterialID *uint
	ReferenceMaterial   *ReferenceMaterial `gorm:"foreignKey:ReferenceMaterialID"`
}

const (
	// ViewName is the name of the view behind SearchResult.
	ViewName = "search_results"

	questionTags = "question_tags"
	materialTags = "reference_material_tags"
)

// Populate is the full set of relations loaded with every search.
var Populate = []string{"question", "referenceMaterial", "question.tags", "referenceMaterial.tags"}

// ViewQuery returns the body of the search_results view for dialect.
func ViewQuery(dialect string) string {
	return fmt.Sprintf(`SELECT
	id AS question_id,
	NULL AS reference_material_id,
	%s AS id
	FROM questions
	UNION ALL
	SELECT
	NULL AS question_id,
	id AS reference_material_id,
	%s AS id
	FROM reference_materials`,
		concatID(dialect, "questions-"), concatID(dialect, "reference_materials-"))
}

func concatID(dialect, prefix string) string {
	if dialect == database.MySQL {
		return fmt.Sprintf("CONCAT('%s', id)", prefix)
	}
	return fmt.Sprintf("'%s' || id", prefix)
}

// Schema lists the tables and the view of this scenario.
func Schema() database.Schema {
	return database.Schema{
		Models:     []interface{}{&Tag{}, &Question{}, &ReferenceMaterial{}},
		JoinTables: []string{questionTags, materialTags},
		Views:      []database.View{{Name: ViewName, Query: ViewQuery}},
	}
}

// Fixture is what Seed wrote.
type Fixture struct {
	Tag               *Tag
	Question          *Question
	ReferenceMaterial *ReferenceMaterial
}

// Seed writes one tag shared by one question and one reference material.
func Seed(uow *database.UnitOfWork, tagName string) (*Fixture, error) {
	tag := &Tag{Name: tagName}
	question := &Question{Text: "What is the capital of France?", Answer: "Paris"}
	material := &ReferenceMaterial{Text: "France is a country in Europe."}

	question.Tags = append(question.Tags, tag)
	material.Tags = append(material.Tags, tag)

	uow.Persist(tag, question, material)
	if err := uow.Flush(); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return &Fixture{Tag: tag, Question: question, ReferenceMaterial: material}, nil
}

// TaggedSearch selects the search results whose question or reference
// material carries a tag named tagName.
func TaggedSearch(db *gorm.DB, tagName string) *gorm.DB {
	return db.Model(&SearchResult{}).
		Where(ViewName+".question_id IN (?)", tagged(db, questionTags, "question_id", tagName)).
		Or(ViewName+".reference_material_id IN (?)", tagged(db, materialTags, "reference_material_id", tagName))
}

func tagged(db *gorm.DB, joinTable, column, tagName string) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Table(joinTable).
		Select(joinTable+"."+column).
		Joins("JOIN tags ON tags.id = "+joinTable+".tag_id").
		Where("tags.name = ?", tagName)
}

// Search finds and counts the search results tagged tagName, with every
// relation populated. limit <= 0 means no limit.
func Search(ctx context.Context, db *gorm.DB, tagName string, limit int) ([]SearchResult, int64, error) {
	return database.FindAndCount[SearchResult](ctx, TaggedSearch(db, tagName), database.FindOptions{
		Limit:    limit,
		OrderBy:  ViewName + ".id",
		Populate: Populate,
	})
}
