package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
)

var (
	// ErrStoreUnavailable reports that the underlying database cannot be opened or used.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSchemaMismatch reports a database schema newer than the code, or a missing upgrade step.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrKeyExists is returned by Add when the primary key (or a unique index) is taken.
	ErrKeyExists = errors.New("key already exists")

	// ErrNotFound is returned by Get when no record has the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownIndex is returned by GetAllByIndex for an index the partition does not declare.
	ErrUnknownIndex = errors.New("unknown index")
)

// Error describes a failed store operation. Kind is one of the package sentinels (or nil)
// and Err the driver error, both reachable through errors.Is/As.
type Error struct {
	Op        string
	Partition string
	Kind      error
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("store: ")
	b.WriteString(e.Op)
	if e.Partition != "" {
		b.WriteString(" ")
		b.WriteString(e.Partition)
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the sentinel kind and the driver error.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(op, partition string, kind, err error) *Error {
	return &Error{Op: op, Partition: partition, Kind: kind, Err: err}
}

// classify maps driver errors onto the package sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, sql.ErrTxDone):
		return ErrStoreUnavailable
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
			return ErrKeyExists
		}
		switch sqliteErr.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrCorrupt, sqlite3.ErrNotADB,
			sqlite3.ErrFull, sqlite3.ErrIoErr, sqlite3.ErrReadonly:
			return ErrStoreUnavailable
		}
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "23505" {
			return ErrKeyExists
		}
		if pqErr.Code.Class() == "08" || pqErr.Code.Class() == "53" {
			return ErrStoreUnavailable
		}
		return nil
	}

	if strings.Contains(err.Error(), "database is closed") {
		return ErrStoreUnavailable
	}
	return nil
}
