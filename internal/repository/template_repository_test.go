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

func newTemplateRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTemplateRepositoryAddEntry(t *testing.T) {
	db, mock, cleanup := newTemplateRepoMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO template_entries")).
		WithArgs(sqlmock.AnyArg(), "tpl-1", "class-1", "sub-1", "teacher-1", "room-1", "slot-1", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := models.TemplateEntry{
		TemplateID: "tpl-1",
		ClassID:    "class-1",
		SubjectID:  "sub-1",
		TeacherID:  "teacher-1",
		RoomID:     "room-1",
		TimeSlotID: "slot-1",
	}
	require.NoError(t, repo.AddEntry(context.Background(), &entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryListEntriesOrdered(t *testing.T) {
	db, mock, cleanup := newTemplateRepoMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	rows := sqlmock.NewRows([]string{"id", "template_id", "class_id", "subject_id", "teacher_id", "room_id", "time_slot_id", "notes", "created_at"}).
		AddRow("te-1", "tpl-1", "class-1", "sub-1", "teacher-1", "room-1", "slot-1", "", time.Now()).
		AddRow("te-2", "tpl-1", "class-1", "sub-2", "teacher-2", "room-1", "slot-2", "", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM template_entries WHERE template_id = $1 ORDER BY created_at ASC, id ASC")).
		WithArgs("tpl-1").
		WillReturnRows(rows)

	entries, err := repo.ListEntries(context.Background(), "tpl-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "te-1", entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
