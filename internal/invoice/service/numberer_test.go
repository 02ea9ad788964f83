package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	invoicedomain "github.com/smallbiznis/aguas/internal/invoice/domain"
	"github.com/smallbiznis/aguas/internal/invoice/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNumbererFormatsSequentialNumbers(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&invoicedomain.InvoiceSequence{}))

	n, err := NewNumbererWithTemplate("", repository.Provide())
	require.NoError(t, err)

	issued := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	first, err := n.Next(context.Background(), db, issued)
	require.NoError(t, err)
	second, err := n.Next(context.Background(), db, issued)
	require.NoError(t, err)

	assert.Equal(t, "INV-20240131-000001", first)
	assert.Equal(t, "INV-20240131-000002", second)
}

func TestNumbererRejectsTemplateWithoutSequence(t *testing.T) {
	_, err := NewNumbererWithTemplate("INV-{YYYY}", repository.Provide())
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidNumberTempl)
}
