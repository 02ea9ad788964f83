package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Violation is the integrity rule a failed write broke.
type Violation int

const (
	ViolationNone Violation = iota
	ViolationUnique
	ViolationForeignKey
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

// Classify maps a driver error onto a Violation. Connections opened by New
// translate errors into gorm sentinels; the driver types cover raw *sql.DB
// users such as migrations, and sqlite reports violations only as text.
func Classify(err error) Violation {
	if err == nil {
		return ViolationNone
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ViolationUnique
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ViolationForeignKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ViolationUnique
		case pgForeignKeyViolation:
			return ViolationForeignKey
		}
		return ViolationNone
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return ViolationUnique
		case mysqlRowIsReferenced, mysqlNoReferencedRow:
			return ViolationForeignKey
		}
		return ViolationNone
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ViolationUnique
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ViolationForeignKey
	}
	return ViolationNone
}

// IsDuplicateKeyErr reports a unique index violation, e.g. a second invoice
// for the same consumption or a reused meter serial number.
func IsDuplicateKeyErr(err error) bool {
	return Classify(err) == ViolationUnique
}

// IsForeignKeyErr reports a broken reference, e.g. deleting a meter that
// still has readings.
func IsForeignKeyErr(err error) bool {
	return Classify(err) == ViolationForeignKey
}
