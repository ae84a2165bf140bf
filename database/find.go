package database

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"gorm.io/gorm"
)

// FindOptions shapes a FindAndCount call. Zero values mean "not set".
type FindOptions struct {
	Limit   int
	Offset  int
	OrderBy string
	// Populate is loaded with one extra query per relation (gorm Preload).
	Populate []string
	// JoinPopulate is loaded in the main query through aliased joins (gorm Joins).
	// Only to-one relations can be joined.
	JoinPopulate []string
}

// FindAndCount runs query twice: once as a count over every match, once as
// the page described by opts with relations populated. Both run on their own
// session so limit, offset and populate never reach the count.
func FindAndCount[T any](ctx context.Context, query *gorm.DB, opts FindOptions) ([]T, int64, error) {
	preloads, err := PopulatePaths(opts.Populate...)
	if err != nil {
		return nil, 0, err
	}
	joins, err := PopulatePaths(opts.JoinPopulate...)
	if err != nil {
		return nil, 0, err
	}

	base := query.WithContext(ctx)
	if base.Statement.Model == nil {
		base = base.Model(new(T))
	}

	var count int64
	if err := base.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	find := base.Session(&gorm.Session{})
	for _, j := range joins {
		find = find.Joins(j)
	}
	for _, p := range preloads {
		find = find.Preload(p)
	}
	if opts.OrderBy != "" {
		find = find.Order(opts.OrderBy)
	}
	if opts.Limit > 0 {
		find = find.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		find = find.Offset(opts.Offset)
	}

	var rows []T
	if err := find.Find(&rows).Error; err != nil {
		return nil, count, fmt.Errorf("find: %w", err)
	}
	return rows, count, nil
}

// PopulatePaths turns relation paths such as "question.tags" into the
// field paths gorm expects ("Question.Tags").
func PopulatePaths(paths ...string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		segments := strings.Split(p, ".")
		for i, s := range segments {
			if s == "" {
				return nil, fmt.Errorf("%w: %q", ErrEmptyPopulatePath, p)
			}
			segments[i] = exported(s)
		}
		out = append(out, strings.Join(segments, "."))
	}
	return out, nil
}

func exported(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
