package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "analytics.conversion_events",
		Columns:      []string{"id", "name"},
		ConflictKeys: []string{"id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "analytics.conversion_events",
		ConflictKeys: []string{"id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "analytics.conversion_events",
		Columns: []string{"id", "name"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"organization_id", "event_id", "event_value"}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_conversion_events"}, cols).WillReturnResult(2)
	mock.ExpectExec("ON CONFLICT").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "conversion_events",
		Columns:      cols,
		ConflictKeys: []string{"organization_id", "event_id"},
	}, [][]any{{"org-1", "evt_1", 10.0}, {"org-1", "evt_2", 0.0}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"id", "name"}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_events"}, cols).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "events",
		Columns:      cols,
		ConflictKeys: []string{"id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for events")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildUpsertSQL(t *testing.T) {
	got := buildUpsertSQL("analytics.events", "_tmp", []string{"id", "v"}, []string{"id"}, []string{"v"})
	assert.Equal(t, `INSERT INTO "analytics"."events" ("id", "v") SELECT "id", "v" FROM "_tmp" ON CONFLICT ("id") DO UPDATE SET "v" = EXCLUDED."v"`, got)

	got = buildUpsertSQL("events", "_tmp", []string{"id"}, []string{"id"}, nil)
	assert.Equal(t, `INSERT INTO "events" ("id") SELECT "id" FROM "_tmp" ON CONFLICT ("id") DO NOTHING`, got)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"analytics.conversion_events", `"analytics"."conversion_events"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"id", "name", "value"})
	assert.Equal(t, `"id", "name", "value"`, result)
}
