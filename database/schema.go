package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// View is a read-only entity backed by a query. Query receives the dialect
// name so string concatenation can be spelled per engine.
type View struct {
	Name  string
	Query func(dialect string) string
}

// Schema is everything a scenario needs created before it runs.
type Schema struct {
	Models []interface{}
	// JoinTables are dropped on refresh; AutoMigrate recreates them from many2many tags.
	JoinTables []string
	Views      []View
}

// Refresh drops and recreates the schema: views first, then join tables,
// then model tables, then everything is migrated back and the views recreated.
func Refresh(ctx context.Context, db *gorm.DB, s Schema) error {
	tx := db.WithContext(ctx)
	m := tx.Migrator()

	for _, v := range s.Views {
		if err := m.DropView(v.Name); err != nil {
			return fmt.Errorf("refresh: drop view %s: %w", v.Name, err)
		}
	}
	for _, name := range s.JoinTables {
		if err := tx.Exec("DROP TABLE IF EXISTS ?", clause.Table{Name: name}).Error; err != nil {
			return fmt.Errorf("refresh: drop join table %s: %w", name, err)
		}
	}
	if len(s.Models) > 0 {
		if err := m.DropTable(s.Models...); err != nil {
			return fmt.Errorf("refresh: drop tables: %w", err)
		}
		if err := m.AutoMigrate(s.Models...); err != nil {
			return fmt.Errorf("refresh: migrate: %w", err)
		}
	}

	dialect := db.Dialector.Name()
	for _, v := range s.Views {
		q := tx.Raw(v.Query(dialect))
		if err := m.CreateView(v.Name, gorm.ViewOption{Query: q}); err != nil {
			return fmt.Errorf("refresh: create view %s: %w", v.Name, err)
		}
	}
	return nil
}
