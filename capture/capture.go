// Package capture records the SQL gorm executes so fixtures can assert on its shape.
package capture

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// emptyIdentifier matches a quoted identifier with nothing inside, as in `s0`.`` or "s0"."".
// A quote directly preceded by a word character is a closing quote, not an empty identifier.
var emptyIdentifier = regexp.MustCompile("(^|[^\\w`\"])(``|\"\")")

// Statement is one executed statement. SQL has the parameters inlined by the dialector.
type Statement struct {
	SQL          string
	RowsAffected int64
	Error        error
	Duration     time.Duration
}

// Recorder implements logger.Interface and keeps every statement it sees.
type Recorder struct {
	mu         sync.Mutex
	statements []Statement
	silent     bool
	quotes     string
	log        *zap.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithZap forwards every statement to l at debug level, and errors at error level.
func WithZap(l *zap.Logger) Option {
	return func(r *Recorder) { r.log = l }
}

// WithDialect sets the dialect whose string literal quoting EmptyIdentifiers honours.
// The default is sqlite.
func WithDialect(name string) Option {
	return func(r *Recorder) { r.quotes = literalQuotes(name) }
}

// New creates a Recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{quotes: literalQuotes("sqlite"), log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = nil
}

// Statements returns a copy of the recorded statements.
func (r *Recorder) Statements() []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Statement, len(r.statements))
	copy(out, r.statements)
	return out
}

// LastSQL returns the last recorded SQL, or "" if none.
func (r *Recorder) LastSQL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statements) == 0 {
		return ""
	}
	return r.statements[len(r.statements)-1].SQL
}

// AllSQL returns every recorded SQL string in execution order.
func (r *Recorder) AllSQL() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.statements))
	for i, s := range r.statements {
		out[i] = s.SQL
	}
	return out
}

// Contains reports whether any recorded SQL contains substr verbatim.
func (r *Recorder) Contains(substr string) bool {
	return r.find(func(sql string) bool { return strings.Contains(sql, substr) })
}

// ContainsNormalized is Contains ignoring case and whitespace runs.
func (r *Recorder) ContainsNormalized(substr string) bool {
	want := normalize(substr)
	return r.find(func(sql string) bool { return strings.Contains(normalize(sql), want) })
}

// Matching returns the recorded SQL strings whose normalized form contains substr.
func (r *Recorder) Matching(substr string) []string {
	want := normalize(substr)
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.statements {
		if strings.Contains(normalize(s.SQL), want) {
			out = append(out, s.SQL)
		}
	}
	return out
}

// EmptyIdentifiers returns the statements that reference an empty quoted identifier.
func (r *Recorder) EmptyIdentifiers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.statements {
		if emptyIdentifier.MatchString(stripStringLiterals(s.SQL, r.quotes)) {
			out = append(out, s.SQL)
		}
	}
	return out
}

// Errors returns the statements that failed.
func (r *Recorder) Errors() []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Statement
	for _, s := range r.statements {
		if s.Error != nil {
			out = append(out, s)
		}
	}
	return out
}

// HasEmptyIdentifier reports whether sql, as rendered by dialect, quotes an empty identifier.
// String literals are skipped so '' is never mistaken for one. The sqlite dialector inlines
// string parameters in double quotes, so for sqlite "" is an empty string, not an identifier.
func HasEmptyIdentifier(sql, dialect string) bool {
	return emptyIdentifier.MatchString(stripStringLiterals(sql, literalQuotes(dialect)))
}

// literalQuotes returns the characters that open a string literal in statements
// explained by the named dialector.
func literalQuotes(dialect string) string {
	if dialect == "sqlite" {
		return `'"`
	}
	return `'`
}

func (r *Recorder) find(match func(string) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.statements {
		if match(s.SQL) {
			return true
		}
	}
	return false
}

func normalize(sql string) string {
	return strings.Join(strings.Fields(strings.ToLower(sql)), " ")
}

// stripStringLiterals drops the contents of string literals opened by any of quotes,
// keeping the delimiters. A literal only closes on the quote that opened it.
func stripStringLiterals(sql, quotes string) string {
	var b strings.Builder
	var open byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case open == 0 && strings.IndexByte(quotes, c) >= 0:
			open = c
			b.WriteByte(c)
		case open != 0 && c == open:
			open = 0
			b.WriteByte(c)
		case open == 0:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// === gorm/logger.Interface ===

// LogMode silences recording at logger.Silent.
func (r *Recorder) LogMode(level logger.LogLevel) logger.Interface {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.silent = level == logger.Silent
	return r
}

// Info forwards gorm's informational messages to zap.
func (r *Recorder) Info(_ context.Context, msg string, args ...interface{}) {
	r.log.Info(fmt.Sprintf(msg, args...))
}

// Warn forwards gorm's warnings to zap.
func (r *Recorder) Warn(_ context.Context, msg string, args ...interface{}) {
	r.log.Warn(fmt.Sprintf(msg, args...))
}

// Error forwards gorm's error messages to zap. Failed statements arrive through Trace.
func (r *Recorder) Error(_ context.Context, msg string, args ...interface{}) {
	r.log.Error(fmt.Sprintf(msg, args...))
}

// Trace records the statement.
func (r *Recorder) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	r.mu.Lock()
	silent := r.silent
	r.mu.Unlock()
	if silent {
		return
	}

	sql, rows := fc()
	elapsed := time.Since(begin)

	r.mu.Lock()
	r.statements = append(r.statements, Statement{
		SQL:          sql,
		RowsAffected: rows,
		Error:        err,
		Duration:     elapsed,
	})
	r.mu.Unlock()

	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		r.log.Error("query failed", append(fields, zap.Error(err))...)
		return
	}
	r.log.Debug("query", fields...)
}
