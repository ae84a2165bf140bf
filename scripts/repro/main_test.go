package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mpyw/gorm-view-regressions/config"
	"github.com/mpyw/gorm-view-regressions/scenarios"
)

func TestRunScenario(t *testing.T) {
	s, ok := scenarios.Lookup("virtual-entity/limit")
	require.True(t, ok)

	r := runScenario(context.Background(), config.Default(), zap.NewNop(), s)

	assert.True(t, r.Passed, r.Error)
	assert.Equal(t, 2, r.Rows)
	assert.Equal(t, int64(2), r.Count)
	assert.Empty(t, r.EmptyIdentifiers)
	assert.NotEmpty(t, r.SQL)
	assert.NotEmpty(t, r.Dump)
}

func TestRunScenario_OpenFails(t *testing.T) {
	s := scenarios.Scenarios[0]

	r := runScenario(context.Background(), &config.Config{Dialect: "oracle"}, zap.NewNop(), s)

	assert.False(t, r.Passed)
	assert.Contains(t, r.Error, "unknown dialect")
}

func TestCalculateSummary(t *testing.T) {
	report := Report{Scenarios: []ScenarioResult{{Passed: true}, {Passed: false}, {Passed: true}}}
	calculateSummary(&report)
	assert.Equal(t, Summary{Total: 3, Passed: 2, Failed: 1}, report.Summary)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(&config.Config{LogLevel: "loud"})
	assert.Error(t, err)

	l, err := newLogger(&config.Config{LogLevel: "warn", Debug: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}
