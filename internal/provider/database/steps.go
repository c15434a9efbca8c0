package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/validation"
)

const (
	databaseExistsQuery = `SELECT 1 FROM pg_database WHERE datname = $1`
	tableExistsQuery    = `SELECT to_regclass($1)`
)

const createTradeLogs = `CREATE TABLE IF NOT EXISTS trade_logs (
	trade_id TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	quantity NUMERIC NOT NULL,
	price NUMERIC NOT NULL,
	confidence NUMERIC,
	market_signal TEXT,
	execution_time_ms NUMERIC,
	profit_loss NUMERIC,
	portfolio_value NUMERIC,
	PRIMARY KEY (trade_id, ts)
)`

const createStrategyMetrics = `CREATE TABLE IF NOT EXISTS strategy_metrics (
	strategy_id TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	win_rate NUMERIC NOT NULL,
	total_trades INTEGER NOT NULL,
	profit_loss NUMERIC NOT NULL,
	sharpe_ratio NUMERIC,
	max_drawdown NUMERIC,
	current_positions INTEGER,
	avg_hold_time NUMERIC,
	PRIMARY KEY (strategy_id, ts)
)`

const createMarketSignals = `CREATE TABLE IF NOT EXISTS market_signals (
	signal_id TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	symbol TEXT NOT NULL,
	signal_type TEXT NOT NULL,
	strength NUMERIC NOT NULL,
	indicators JSONB,
	news_sentiment NUMERIC,
	volume_analysis NUMERIC,
	PRIMARY KEY (signal_id, ts)
)`

const createDailyPerformance = `CREATE TABLE IF NOT EXISTS daily_performance (
	metric_type TEXT NOT NULL,
	day DATE NOT NULL,
	metrics JSONB NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (metric_type, day)
)`

type mirrorTable struct {
	name string
	ddl  string
}

// mirrorTables returns the postgres mirrors of the DynamoDB log
// tables, in creation order.
func mirrorTables() []mirrorTable {
	return []mirrorTable{
		{name: "trade_logs", ddl: createTradeLogs},
		{name: "strategy_metrics", ddl: createStrategyMetrics},
		{name: "market_signals", ddl: createMarketSignals},
		{name: "daily_performance", ddl: createDailyPerformance},
	}
}

// duplicateObject reports whether DDL was rejected because the object
// appeared between check and create. 42P04 is duplicate_database,
// 42P07 duplicate_table.
func duplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == "42P04" || pgErr.Code == "42P07"
}

// databaseExists queries pg_database on a maintenance session.
func databaseExists(ctx context.Context, db DB, name string) (bool, error) {
	var one int

	err := db.QueryRowContext(ctx, databaseExistsQuery, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query pg_database: %w", err)
	}

	return true, nil
}

// DatabaseStep ensures the application database exists. Best effort:
// the backend can serve from DynamoDB alone, so a dead postgres does
// not abort the run.
type DatabaseStep struct {
	name           string
	maintenanceURL string
	id             step.StepID
	opener         Opener
}

// NewDatabaseStep creates a step that ensures the named database.
func NewDatabaseStep(name, maintenanceURL string, opener Opener) *DatabaseStep {
	return &DatabaseStep{
		name:           name,
		maintenanceURL: maintenanceURL,
		id:             step.MustNewStepID(StepIDDatabase),
		opener:         opener,
	}
}

// ID returns the step identifier.
func (s *DatabaseStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *DatabaseStep) DependsOn() []step.StepID {
	return nil
}

// Criticality returns how failures of this step are treated.
func (s *DatabaseStep) Criticality() step.Criticality {
	return step.BestEffort
}

// Check verifies the database exists.
func (s *DatabaseStep) Check(ctx step.RunContext) (step.Status, error) {
	db, err := s.opener(ctx.Context(), s.maintenanceURL)
	if err != nil {
		return step.StatusUnknown, err
	}
	defer db.Close()

	exists, err := databaseExists(ctx.Context(), db, s.name)
	if err != nil {
		return step.StatusUnknown, err
	}

	if exists {
		return step.StatusSatisfied, nil
	}

	return step.StatusNeedsApply, nil
}

// Plan describes what Apply would do.
func (s *DatabaseStep) Plan(ctx step.RunContext) (step.Diff, error) {
	status, err := s.Check(ctx)
	if err != nil {
		// The state query failed; show the worst case.
		return step.NewDiff(step.DiffTypeAdd, "database", s.name, "", "created"), nil
	}

	if status == step.StatusSatisfied {
		return step.NewDiff(step.DiffTypeNone, "database", s.name, "", ""), nil
	}

	return step.NewDiff(step.DiffTypeAdd, "database", s.name, "", "created"), nil
}

// Apply creates the database unless it appeared in the meantime.
func (s *DatabaseStep) Apply(ctx step.RunContext) error {
	if err := validation.ValidateDatabaseName(s.name); err != nil {
		return fmt.Errorf("invalid database name: %w", err)
	}

	db, err := s.opener(ctx.Context(), s.maintenanceURL)
	if err != nil {
		return err
	}
	defer db.Close()

	exists, err := databaseExists(ctx.Context(), db, s.name)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	// CREATE DATABASE takes no IF NOT EXISTS and no bind parameters;
	// the name is validated above.
	if _, err := db.ExecContext(ctx.Context(), "CREATE DATABASE "+s.name); err != nil && !duplicateObject(err) {
		return fmt.Errorf("failed to create database %s: %w", s.name, err)
	}

	return nil
}

// Explain provides a human-readable explanation.
func (s *DatabaseStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Ensure database "+s.name,
		"Creates the application database on the postgres server if it does not exist.",
	)
}

// SchemaStep ensures the mirror tables exist in the application
// database.
type SchemaStep struct {
	url    string
	id     step.StepID
	opener Opener
}

// NewSchemaStep creates a step that ensures the mirror tables.
func NewSchemaStep(connURL string, opener Opener) *SchemaStep {
	return &SchemaStep{
		url:    connURL,
		id:     step.MustNewStepID(StepIDSchema),
		opener: opener,
	}
}

// ID returns the step identifier.
func (s *SchemaStep) ID() step.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *SchemaStep) DependsOn() []step.StepID {
	return []step.StepID{step.MustNewStepID(StepIDDatabase)}
}

// Criticality returns how failures of this step are treated.
func (s *SchemaStep) Criticality() step.Criticality {
	return step.BestEffort
}

// missingTables returns the mirror tables to_regclass does not know.
func (s *SchemaStep) missingTables(ctx context.Context, db DB) ([]string, error) {
	var missing []string

	for _, table := range mirrorTables() {
		var regclass sql.NullString

		if err := db.QueryRowContext(ctx, tableExistsQuery, table.name).Scan(&regclass); err != nil {
			return nil, fmt.Errorf("failed to query to_regclass for %s: %w", table.name, err)
		}

		if !regclass.Valid {
			missing = append(missing, table.name)
		}
	}

	return missing, nil
}

// Check verifies every mirror table exists.
func (s *SchemaStep) Check(ctx step.RunContext) (step.Status, error) {
	db, err := s.opener(ctx.Context(), s.url)
	if err != nil {
		return step.StatusUnknown, err
	}
	defer db.Close()

	missing, err := s.missingTables(ctx.Context(), db)
	if err != nil {
		return step.StatusUnknown, err
	}

	if len(missing) > 0 {
		return step.StatusNeedsApply, nil
	}

	return step.StatusSatisfied, nil
}

// Plan describes what Apply would do.
func (s *SchemaStep) Plan(ctx step.RunContext) (step.Diff, error) {
	allTables := make([]string, 0, len(mirrorTables()))
	for _, table := range mirrorTables() {
		allTables = append(allTables, table.name)
	}

	db, err := s.opener(ctx.Context(), s.url)
	if err != nil {
		// The state query failed; show the worst case.
		return step.NewDiff(step.DiffTypeAdd, "schema", "tables", "", strings.Join(allTables, ", ")), nil
	}
	defer db.Close()

	missing, err := s.missingTables(ctx.Context(), db)
	if err != nil {
		return step.NewDiff(step.DiffTypeAdd, "schema", "tables", "", strings.Join(allTables, ", ")), nil
	}

	if len(missing) == 0 {
		return step.NewDiff(step.DiffTypeNone, "schema", "tables", "", ""), nil
	}

	return step.NewDiff(step.DiffTypeAdd, "schema", "tables", "", strings.Join(missing, ", ")), nil
}

// Apply creates the mirror tables. IF NOT EXISTS makes reruns no-ops.
func (s *SchemaStep) Apply(ctx step.RunContext) error {
	db, err := s.opener(ctx.Context(), s.url)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, table := range mirrorTables() {
		if _, err := db.ExecContext(ctx.Context(), table.ddl); err != nil && !duplicateObject(err) {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}

	return nil
}

// Explain provides a human-readable explanation.
func (s *SchemaStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Ensure mirror tables",
		"Creates the trade log, strategy metric, market signal and daily performance tables.",
	)
}

// Ensure steps implement step.Step.
var (
	_ step.Step = (*DatabaseStep)(nil)
	_ step.Step = (*SchemaStep)(nil)
)
