// Package main runs every catalogued regression scenario against the
// configured database and prints a JSON report.
//
// Each scenario gets a fresh connection and a refreshed schema, so
// scenarios that share table names do not see each other.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/goforj/godump"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mpyw/gorm-view-regressions/capture"
	"github.com/mpyw/gorm-view-regressions/config"
	"github.com/mpyw/gorm-view-regressions/database"
	"github.com/mpyw/gorm-view-regressions/scenarios"
)

// ScenarioResult holds the outcome of a single scenario.
type ScenarioResult struct {
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	Passed           bool     `json:"passed"`
	Rows             int      `json:"rows"`
	Count            int64    `json:"count"`
	ExpectedRows     int      `json:"expected_rows"`
	ExpectedCount    int64    `json:"expected_count"`
	SQL              []string `json:"sql"`
	EmptyIdentifiers []string `json:"empty_identifiers,omitempty"`
	Dump             string   `json:"dump,omitempty"`
	Notes            string   `json:"notes,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// Report holds the complete run.
type Report struct {
	Dialect   string           `json:"dialect"`
	Scenarios []ScenarioResult `json:"scenarios"`
	Summary   Summary          `json:"summary"`
}

// Summary holds summary statistics.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// resultDumper keeps dumps of populated relations readable.
var resultDumper = godump.NewDumper(godump.WithMaxDepth(4))

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	report := Report{Dialect: cfg.Dialect}
	ctx := context.Background()
	for _, s := range scenarios.Scenarios {
		r := runScenario(ctx, cfg, log, s)
		report.Scenarios = append(report.Scenarios, r)
		if r.Passed {
			log.Info("Scenario passed", zap.String("scenario", s.Name))
		} else {
			log.Error("Scenario failed", zap.String("scenario", s.Name), zap.String("error", r.Error),
				zap.Int("rows", r.Rows), zap.Int64("count", r.Count))
		}
	}
	calculateSummary(&report)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatal("Encoding report failed", zap.Error(err))
	}
	if report.Summary.Failed > 0 {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		level = zapcore.DebugLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func runScenario(ctx context.Context, cfg *config.Config, log *zap.Logger, s scenarios.Scenario) (r ScenarioResult) {
	r = ScenarioResult{
		Name:          s.Name,
		Category:      string(s.Category),
		ExpectedRows:  s.ExpectedRows,
		ExpectedCount: s.ExpectedCount,
		Notes:         s.Notes,
	}

	rec := capture.New(
		capture.WithDialect(cfg.Dialect),
		capture.WithZap(log.With(zap.String("scenario", s.Name))),
	)
	db, err := database.Open(cfg, rec)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Refresh(ctx, db, s.Schema); err != nil {
		r.Error = err.Error()
		return r
	}
	rec.Reset()

	out, err := s.Run(ctx, db)
	r.SQL = rec.AllSQL()
	r.EmptyIdentifiers = rec.EmptyIdentifiers()
	r.Rows, r.Count = out.Rows, out.Count
	if out.Results != nil {
		r.Dump = resultDumper.DumpJSONStr(out.Results)
	}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Passed = s.Passed(out) && len(r.EmptyIdentifiers) == 0
	return r
}

func calculateSummary(report *Report) {
	for _, r := range report.Scenarios {
		report.Summary.Total++
		if r.Passed {
			report.Summary.Passed++
		} else {
			report.Summary.Failed++
		}
	}
}
