package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func newConflictRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestConflictRepositoryRecordInserts(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()
	repo := NewConflictRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_conflicts")).
		WithArgs(sqlmock.AnyArg(), "sched-1", "TEACHER", "entry-a", "entry-b", "teacher double-booked", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	conflict := models.ScheduleConflict{
		ScheduleID:   "sched-1",
		ConflictType: models.ConflictTeacher,
		EntryAID:     "entry-a",
		EntryBID:     "entry-b",
		Description:  "teacher double-booked",
	}
	require.NoError(t, repo.Record(context.Background(), nil, &conflict))
	assert.NotEmpty(t, conflict.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryRecordIdempotent(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()
	repo := NewConflictRepository(db)

	// DO NOTHING fires: zero rows, so the existing open row's id is loaded.
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (conflict_type, entry_a_id, entry_b_id) WHERE NOT resolved DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "sched-1", "ROOM", "entry-a", "entry-b", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM schedule_conflicts WHERE conflict_type = $1 AND entry_a_id = $2 AND entry_b_id = $3 AND NOT resolved")).
		WithArgs("ROOM", "entry-a", "entry-b").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-id"))

	conflict := models.ScheduleConflict{
		ScheduleID:   "sched-1",
		ConflictType: models.ConflictRoom,
		EntryAID:     "entry-a",
		EntryBID:     "entry-b",
	}
	require.NoError(t, repo.Record(context.Background(), nil, &conflict))
	assert.Equal(t, "existing-id", conflict.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryListUnresolved(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()
	repo := NewConflictRepository(db)

	rows := sqlmock.NewRows([]string{"id", "schedule_id", "conflict_type", "entry_a_id", "entry_b_id", "description", "resolved", "resolved_by", "resolved_at", "created_at"}).
		AddRow("conf-1", "sched-1", "CLASS", "entry-a", "entry-b", "", false, nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE schedule_id = $1 AND NOT resolved ORDER BY created_at ASC")).
		WithArgs("sched-1").
		WillReturnRows(rows)

	conflicts, err := repo.ListUnresolved(context.Background(), "sched-1")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictClass, conflicts[0].ConflictType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryResolve(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()
	repo := NewConflictRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_conflicts SET resolved = true")).
		WithArgs("conf-1", "admin-1", sqlmock.AnyArg(), " | resolution: moved class to lab").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Resolve(context.Background(), "conf-1", "admin-1", "moved class to lab"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
