package virtualview_test

import (
	"context"
	"testing"

	"github.com/goforj/godump"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mpyw/gorm-view-regressions/capture"
	"github.com/mpyw/gorm-view-regressions/config"
	"github.com/mpyw/gorm-view-regressions/database"
	"github.com/mpyw/gorm-view-regressions/virtualview"
)

var resultDumper = godump.NewDumper(godump.WithMaxDepth(4))

// setupDB opens a private in-memory database with the scenario schema.
func setupDB(t *testing.T) (*gorm.DB, *capture.Recorder) {
	t.Helper()

	cfg := config.Default()
	rec := capture.New(capture.WithDialect(cfg.Dialect))
	db, err := database.Open(cfg, rec)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := database.Refresh(context.Background(), db, virtualview.Schema()); err != nil {
		t.Fatalf("failed to refresh schema: %v", err)
	}
	return db, rec
}

// seed writes the shared-tag fixture through its own unit of work.
func seed(t *testing.T, db *gorm.DB) *virtualview.Fixture {
	t.Helper()

	f, err := virtualview.Seed(database.Fork(context.Background(), db), "geography")
	if err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	return f
}

// assertPopulated checks that every result carries exactly one source and
// that source's tags.
func assertPopulated(t *testing.T, results []virtualview.SearchResult, f *virtualview.Fixture) {
	t.Helper()

	require.Len(t, results, 2, resultDumper.DumpJSONStr(results))

	q, m := results[0], results[1]
	assert.Equal(t, "questions-1", q.ID)
	require.NotNil(t, q.Question)
	assert.Nil(t, q.ReferenceMaterial)
	assert.Nil(t, q.ReferenceMaterialID)
	assert.Equal(t, f.Question.ID, q.Question.ID)
	require.Len(t, q.Question.Tags, 1)
	assert.Equal(t, "geography", q.Question.Tags[0].Name)

	assert.Equal(t, "reference_materials-1", m.ID)
	require.NotNil(t, m.ReferenceMaterial)
	assert.Nil(t, m.Question)
	assert.Nil(t, m.QuestionID)
	assert.Equal(t, f.ReferenceMaterial.ID, m.ReferenceMaterial.ID)
	require.Len(t, m.ReferenceMaterial.Tags, 1)
	assert.Equal(t, f.Tag.ID, m.ReferenceMaterial.Tags[0].ID)
}

// TestSearch_NoLimit filters the view through both nested many-to-many
// paths without a limit.
func TestSearch_NoLimit(t *testing.T) {
	db, rec := setupDB(t)
	f := seed(t, db)
	rec.Reset()

	results, count, err := virtualview.Search(context.Background(), database.Fork(context.Background(), db).DB(), "geography", 0)
	require.NoError(t, err)

	assertPopulated(t, results, f)
	assert.Equal(t, int64(2), count)
	assert.Empty(t, rec.EmptyIdentifiers())
	assert.False(t, rec.ContainsNormalized("limit"))
}

// TestSearch_Limit is the same search with a limit, the case where the
// correlation column of the view used to come out as an empty identifier.
func TestSearch_Limit(t *testing.T) {
	db, rec := setupDB(t)
	f := seed(t, db)
	rec.Reset()

	results, count, err := virtualview.Search(context.Background(), database.Fork(context.Background(), db).DB(), "geography", 10)
	require.NoError(t, err)

	assertPopulated(t, results, f)
	assert.Equal(t, int64(2), count)
	assert.Empty(t, rec.EmptyIdentifiers(), "statements: %v", rec.AllSQL())

	limited := rec.Matching("limit 10")
	require.Len(t, limited, 1, rec.AllSQL())
	assert.False(t, capture.HasEmptyIdentifier(limited[0], database.SQLite))
	assert.Contains(t, limited[0], "search_results.question_id IN (SELECT")
}

func TestSearch_LimitSmallerThanMatches(t *testing.T) {
	db, _ := setupDB(t)
	seed(t, db)

	results, count, err := virtualview.Search(context.Background(), db, "geography", 1)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "questions-1", results[0].ID)
	assert.Equal(t, int64(2), count)
}

func TestSearch_OtherTag(t *testing.T) {
	db, _ := setupDB(t)
	seed(t, db)

	uow := database.Fork(context.Background(), db)
	uow.Persist(&virtualview.Question{
		Text:   "Which river flows through Paris?",
		Answer: "Seine",
		Tags:   []*virtualview.Tag{{Name: "rivers"}},
	})
	require.NoError(t, uow.Flush())

	results, count, err := virtualview.Search(context.Background(), db, "rivers", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, "questions-2", results[0].ID)
	require.NotNil(t, results[0].Question)
	assert.Equal(t, "Seine", results[0].Question.Answer)

	results, count, err = virtualview.Search(context.Background(), db, "history", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, count)
}

// TestView_OneRowPerSource checks that every row of the base tables shows
// up in the view exactly once.
func TestView_OneRowPerSource(t *testing.T) {
	db, _ := setupDB(t)
	seed(t, db)

	var rows []virtualview.SearchResult
	require.NoError(t, db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].QuestionID)
	assert.Nil(t, rows[0].ReferenceMaterialID)
	require.NotNil(t, rows[1].ReferenceMaterialID)
	assert.Nil(t, rows[1].QuestionID)
}

// TestSearch_ReferenceMaterialOnlyTag reaches a tag that only a reference
// material carries, so only the referenceMaterial.tags path can match.
func TestSearch_ReferenceMaterialOnlyTag(t *testing.T) {
	db, rec := setupDB(t)
	seed(t, db)

	uow := database.Fork(context.Background(), db)
	uow.Persist(&virtualview.ReferenceMaterial{
		Text: "A short history of cartography",
		Tags: []*virtualview.Tag{{Name: "literature"}},
	})
	require.NoError(t, uow.Flush())
	rec.Reset()

	results, count, err := virtualview.Search(context.Background(), db, "literature", 10)
	require.NoError(t, err)
	require.Len(t, results, 1, resultDumper.DumpJSONStr(results))
	assert.Equal(t, int64(1), count)

	r := results[0]
	assert.Equal(t, "reference_materials-2", r.ID)
	assert.Nil(t, r.Question)
	assert.Nil(t, r.QuestionID)
	require.NotNil(t, r.ReferenceMaterial)
	assert.Equal(t, "A short history of cartography", r.ReferenceMaterial.Text)
	require.Len(t, r.ReferenceMaterial.Tags, 1)
	assert.Equal(t, "literature", r.ReferenceMaterial.Tags[0].Name)
	assert.Empty(t, rec.EmptyIdentifiers())
}

// TestSearch_EmptyTagName inlines an empty string parameter, which sqlite
// renders as "" and must not count as an empty identifier.
func TestSearch_EmptyTagName(t *testing.T) {
	db, rec := setupDB(t)
	seed(t, db)
	rec.Reset()

	results, count, err := virtualview.Search(context.Background(), db, "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, count)
	assert.True(t, rec.Contains(`= ""`), rec.AllSQL())
	assert.Empty(t, rec.EmptyIdentifiers(), "statements: %v", rec.AllSQL())
}

func TestViewQuery_Dialects(t *testing.T) {
	assert.Contains(t, virtualview.ViewQuery(database.MySQL), "CONCAT('questions-', id)")
	assert.Contains(t, virtualview.ViewQuery(database.SQLite), "'reference_materials-' || id")
	assert.Contains(t, virtualview.ViewQuery(database.Postgres), "UNION ALL")
}
