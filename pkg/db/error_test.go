package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Violation
	}{
		{"nil", nil, ViolationNone},
		{"gorm duplicate", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), ViolationUnique},
		{"gorm foreign key", gorm.ErrForeignKeyViolated, ViolationForeignKey},
		{"postgres unique", fmt.Errorf("insert invoice: %w", &pgconn.PgError{Code: "23505", ConstraintName: "ux_invoices_consumption_id"}), ViolationUnique},
		{"postgres foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "fk_consumptions_meter"}, ViolationForeignKey},
		{"postgres other", &pgconn.PgError{Code: "40001"}, ViolationNone},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, ViolationUnique},
		{"mysql referenced", &mysql.MySQLError{Number: 1451}, ViolationForeignKey},
		{"sqlite unique", errors.New("UNIQUE constraint failed: meters.serial_number"), ViolationUnique},
		{"sqlite foreign key", errors.New("FOREIGN KEY constraint failed"), ViolationForeignKey},
		{"unrelated", errors.New("connection reset"), ViolationNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestViolationHelpers(t *testing.T) {
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: invoices.consumption_id")))
	assert.False(t, IsDuplicateKeyErr(gorm.ErrForeignKeyViolated))
	assert.True(t, IsForeignKeyErr(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsForeignKeyErr(nil))
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(Config{Type: "oracle"})
	assert.Error(t, err)

	d, err := Dialect(Config{Type: "postgres", Host: "localhost"})
	assert.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}
