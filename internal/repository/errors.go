package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateChunk is returned when the ledger already holds the chunk's key.
	ErrDuplicateChunk = errors.New("chunk already processed")
)

const (
	uniqueViolation = "23505"

	chunkKeyConstraint = "import_chunks_run_dataset_index_key"
)

func isUniqueViolationOnConstraint(err error, constraint string) bool {
	var pqErr *pq.Error
	if err == nil || !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}
