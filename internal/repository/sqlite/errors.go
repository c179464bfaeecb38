package sqlite

import (
	"errors"
	"strings"

	"github.com/msomdec/portfolio-users/internal/domain"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type constraintKind int

const (
	noConstraint constraintKind = iota
	uniqueConstraint
	foreignKeyConstraint
)

// classifyConstraint reports which constraint, if any, a driver error violated.
func classifyConstraint(err error) constraintKind {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return noConstraint
	}

	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return uniqueConstraint
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return foreignKeyConstraint
	}

	// Primary result code only: fall back to the message.
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := se.Error()
		switch {
		case strings.Contains(msg, "UNIQUE constraint failed"):
			return uniqueConstraint
		case strings.Contains(msg, "FOREIGN KEY constraint failed"):
			return foreignKeyConstraint
		}
	}
	return noConstraint
}

func storageErr(op string, err error) error {
	return &domain.StorageError{Op: op, Err: err}
}
