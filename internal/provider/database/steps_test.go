package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/provider/database"
)

const (
	maintenanceURL = "postgres://trader:pw@localhost:5432/postgres"
	applicationURL = "postgres://trader:pw@localhost:5432/cryonith"
)

type scanFunc func(dest ...any) error

type fakeRow struct {
	scan scanFunc
}

func (r fakeRow) Scan(dest ...any) error {
	return r.scan(dest...)
}

// existsRow answers the pg_database probe affirmatively.
func existsRow() scanFunc {
	return func(dest ...any) error {
		if n, ok := dest[0].(*int); ok {
			*n = 1
		}
		return nil
	}
}

// noRow answers the pg_database probe with no match.
func noRow() scanFunc {
	return func(_ ...any) error {
		return sql.ErrNoRows
	}
}

// regclassRow answers the to_regclass probe.
func regclassRow(valid bool) scanFunc {
	return func(dest ...any) error {
		if s, ok := dest[0].(*sql.NullString); ok {
			*s = sql.NullString{String: "public.table", Valid: valid}
		}
		return nil
	}
}

// errRow fails every scan.
func errRow(err error) scanFunc {
	return func(_ ...any) error {
		return err
	}
}

type fakeDB struct {
	rows    []scanFunc
	execErr error
	execs   []string
	queries []string
	closed  bool
}

func (db *fakeDB) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	db.execs = append(db.execs, query)
	if db.execErr != nil {
		return nil, db.execErr
	}
	return nil, nil
}

func (db *fakeDB) QueryRowContext(_ context.Context, query string, _ ...any) database.Row {
	db.queries = append(db.queries, query)
	if len(db.rows) == 0 {
		return fakeRow{scan: noRow()}
	}

	next := db.rows[0]
	db.rows = db.rows[1:]

	return fakeRow{scan: next}
}

func (db *fakeDB) Close() error {
	db.closed = true
	return nil
}

type fakeOpener struct {
	db   *fakeDB
	err  error
	urls []string
}

func (o *fakeOpener) open(_ context.Context, url string) (database.DB, error) {
	o.urls = append(o.urls, url)
	if o.err != nil {
		return nil, o.err
	}
	return o.db, nil
}

func TestDatabaseStep_ID(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{db: &fakeDB{}}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	assert.Equal(t, "database:ensure:database", s.ID().String())
}

func TestDatabaseStep_NoDependencies(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{db: &fakeDB{}}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	assert.Empty(t, s.DependsOn())
}

func TestDatabaseStep_IsBestEffort(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{db: &fakeDB{}}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	assert.Equal(t, step.BestEffort, s.Criticality())
}

func TestDatabaseStep_Check_DatabaseExists(t *testing.T) {
	t.Parallel()

	db := &fakeDB{rows: []scanFunc{existsRow()}}
	opener := &fakeOpener{db: db}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.StatusSatisfied, status)
	assert.Equal(t, []string{maintenanceURL}, opener.urls)
	assert.True(t, db.closed)
}

func TestDatabaseStep_Check_DatabaseMissing(t *testing.T) {
	t.Parallel()

	db := &fakeDB{rows: []scanFunc{noRow()}}
	opener := &fakeOpener{db: db}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)
}

func TestDatabaseStep_Check_ServerUnreachable(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{err: errors.New("connection refused")}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.Error(t, err)
	assert.Equal(t, step.StatusUnknown, status)
}

func TestDatabaseStep_Check_QueryFails(t *testing.T) {
	t.Parallel()

	db := &fakeDB{rows: []scanFunc{errRow(errors.New("server closed connection"))}}
	opener := &fakeOpener{db: db}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.Error(t, err)
	assert.Equal(t, step.StatusUnknown, status)
}

func TestDatabaseStep_Plan_WhenMissing(t *testing.T) {
	t.Parallel()

	db := &fakeDB{rows: []scanFunc{noRow()}}
	opener := &fakeOpener{db: db}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	diff, err := s.Plan(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.DiffTypeAdd, diff.Type())
	assert.Equal(t, "database", diff.Resource())
	assert.Equal(t, "cryonith", diff.Name())
	assert.Equal(t, "created", diff.NewValue())
}

func TestDatabaseStep_Plan_WhenPresent(t *testing.T) {
	t.Parallel()

	db := &fakeDB{rows: []scanFunc{existsRow()}}
	opener := &fakeOpener{db: db}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	diff, err := s.Plan(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.DiffTypeNone, diff.Type())
}

func TestDatabaseStep_Plan_ServerUnreachableShowsWorstCase(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{err: errors.New("connection refused")}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	diff, err := s.Plan(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.DiffTypeAdd, diff.Type())
}

func TestDatabaseStep_Apply_CreatesWhenMissing(t *testing.T) {
	t.Parallel()

	db := &fakeDB{rows: []scanFunc{noRow()}}
	opener := &fakeOpener{db: db}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE DATABASE cryonith"}, db.execs)
	assert.True(t, db.closed)
}

func TestDatabaseStep_Apply_SkipsWhenPresent(t *testing.T) {
	t.Parallel()

	db := &fakeDB{rows: []scanFunc{existsRow()}}
	opener := &fakeOpener{db: db}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Empty(t, db.execs)
}

func TestDatabaseStep_Apply_AbsorbsDuplicateDatabase(t *testing.T) {
	t.Parallel()

	db := &fakeDB{
		rows:    []scanFunc{noRow()},
		execErr: &pgconn.PgError{Code: "42P04"},
	}
	opener := &fakeOpener{db: db}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
}

func TestDatabaseStep_Apply_RejectsInvalidName(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{db: &fakeDB{}}
	s := database.NewDatabaseStep("cryonith; DROP TABLE trade_logs", maintenanceURL, opener.open)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid database name")
	assert.Empty(t, opener.urls)
}

func TestDatabaseStep_Apply_CreateFails(t *testing.T) {
	t.Parallel()

	db := &fakeDB{
		rows:    []scanFunc{noRow()},
		execErr: errors.New("permission denied to create database"),
	}
	opener := &fakeOpener{db: db}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create database cryonith")
}

func TestDatabaseStep_Explain(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{db: &fakeDB{}}
	s := database.NewDatabaseStep("cryonith", maintenanceURL, opener.open)

	explanation := s.Explain(step.NewExplainContext())

	assert.Contains(t, explanation.Summary(), "cryonith")
	assert.NotEmpty(t, explanation.Detail())
}

func TestSchemaStep_ID(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{db: &fakeDB{}}
	s := database.NewSchemaStep(applicationURL, opener.open)

	assert.Equal(t, "database:ensure:schema", s.ID().String())
}

func TestSchemaStep_DependsOnDatabase(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{db: &fakeDB{}}
	s := database.NewSchemaStep(applicationURL, opener.open)

	deps := s.DependsOn()

	require.Len(t, deps, 1)
	assert.Equal(t, "database:ensure:database", deps[0].String())
}

func TestSchemaStep_IsBestEffort(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{db: &fakeDB{}}
	s := database.NewSchemaStep(applicationURL, opener.open)

	assert.Equal(t, step.BestEffort, s.Criticality())
}

func TestSchemaStep_Check_AllTablesPresent(t *testing.T) {
	t.Parallel()

	db := &fakeDB{rows: []scanFunc{
		regclassRow(true), regclassRow(true), regclassRow(true), regclassRow(true),
	}}
	opener := &fakeOpener{db: db}
	s := database.NewSchemaStep(applicationURL, opener.open)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.StatusSatisfied, status)
	assert.Equal(t, []string{applicationURL}, opener.urls)
	assert.Len(t, db.queries, 4)
}

func TestSchemaStep_Check_TableMissing(t *testing.T) {
	t.Parallel()

	db := &fakeDB{rows: []scanFunc{
		regclassRow(true), regclassRow(false), regclassRow(true), regclassRow(true),
	}}
	opener := &fakeOpener{db: db}
	s := database.NewSchemaStep(applicationURL, opener.open)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)
}

func TestSchemaStep_Check_ServerUnreachable(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{err: errors.New("connection refused")}
	s := database.NewSchemaStep(applicationURL, opener.open)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.Error(t, err)
	assert.Equal(t, step.StatusUnknown, status)
}

func TestSchemaStep_Check_QueryFails(t *testing.T) {
	t.Parallel()

	db := &fakeDB{rows: []scanFunc{errRow(errors.New("server closed connection"))}}
	opener := &fakeOpener{db: db}
	s := database.NewSchemaStep(applicationURL, opener.open)

	status, err := s.Check(step.NewRunContext(context.TODO()))

	require.Error(t, err)
	assert.Equal(t, step.StatusUnknown, status)
}

func TestSchemaStep_Plan_ListsMissingTables(t *testing.T) {
	t.Parallel()

	db := &fakeDB{rows: []scanFunc{
		regclassRow(true), regclassRow(false), regclassRow(true), regclassRow(false),
	}}
	opener := &fakeOpener{db: db}
	s := database.NewSchemaStep(applicationURL, opener.open)

	diff, err := s.Plan(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.DiffTypeAdd, diff.Type())
	assert.Equal(t, "schema", diff.Resource())
	assert.Equal(t, "strategy_metrics, daily_performance", diff.NewValue())
}

func TestSchemaStep_Plan_UpToDate(t *testing.T) {
	t.Parallel()

	db := &fakeDB{rows: []scanFunc{
		regclassRow(true), regclassRow(true), regclassRow(true), regclassRow(true),
	}}
	opener := &fakeOpener{db: db}
	s := database.NewSchemaStep(applicationURL, opener.open)

	diff, err := s.Plan(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.DiffTypeNone, diff.Type())
}

func TestSchemaStep_Plan_ServerUnreachableShowsWorstCase(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{err: errors.New("connection refused")}
	s := database.NewSchemaStep(applicationURL, opener.open)

	diff, err := s.Plan(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Equal(t, step.DiffTypeAdd, diff.Type())
	assert.Equal(t, "trade_logs, strategy_metrics, market_signals, daily_performance", diff.NewValue())
}

func TestSchemaStep_Apply_CreatesAllTables(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	opener := &fakeOpener{db: db}
	s := database.NewSchemaStep(applicationURL, opener.open)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	require.Len(t, db.execs, 4)
	assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS trade_logs")
	assert.Contains(t, db.execs[1], "CREATE TABLE IF NOT EXISTS strategy_metrics")
	assert.Contains(t, db.execs[2], "CREATE TABLE IF NOT EXISTS market_signals")
	assert.Contains(t, db.execs[3], "CREATE TABLE IF NOT EXISTS daily_performance")
	assert.True(t, db.closed)
}

func TestSchemaStep_Apply_AbsorbsDuplicateTable(t *testing.T) {
	t.Parallel()

	db := &fakeDB{execErr: &pgconn.PgError{Code: "42P07"}}
	opener := &fakeOpener{db: db}
	s := database.NewSchemaStep(applicationURL, opener.open)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.NoError(t, err)
	assert.Len(t, db.execs, 4)
}

func TestSchemaStep_Apply_CreateFails(t *testing.T) {
	t.Parallel()

	db := &fakeDB{execErr: errors.New("out of disk")}
	opener := &fakeOpener{db: db}
	s := database.NewSchemaStep(applicationURL, opener.open)

	err := s.Apply(step.NewRunContext(context.TODO()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create table trade_logs")
}

func TestSchemaStep_Explain(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{db: &fakeDB{}}
	s := database.NewSchemaStep(applicationURL, opener.open)

	explanation := s.Explain(step.NewExplainContext())

	assert.Contains(t, explanation.Summary(), "mirror tables")
	assert.NotEmpty(t, explanation.Detail())
}
