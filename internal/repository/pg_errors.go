package repository

import (
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// Postgres error codes that indicate a lost race between concurrent writers.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// translateWriteError maps storage-level contention failures to the retryable
// concurrent-write error; everything else passes through unchanged.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return appErrors.Wrap(err, appErrors.ErrConcurrentWrite.Code, appErrors.ErrConcurrentWrite.Status, appErrors.ErrConcurrentWrite.Message)
		}
	}
	return err
}
