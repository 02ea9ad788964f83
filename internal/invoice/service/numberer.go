package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/aguas/internal/config"
	invoicedomain "github.com/smallbiznis/aguas/internal/invoice/domain"
	"github.com/smallbiznis/aguas/internal/invoice/format"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config config.Config
	Repo   invoicedomain.Repository
}

type Numberer struct {
	template string
	repo     invoicedomain.Repository
}

func NewNumberer(p Params) (invoicedomain.Numberer, error) {
	return NewNumbererWithTemplate(p.Config.InvoiceNumberTemplate, p.Repo)
}

// NewNumbererWithTemplate falls back to the default template when template is blank.
func NewNumbererWithTemplate(template string, repo invoicedomain.Repository) (*Numberer, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		template = format.DefaultInvoiceNumberTemplate
	}
	if err := format.ValidateTemplate(template); err != nil {
		return nil, invoicedomain.ErrInvalidNumberTempl.Wrap(err)
	}
	return &Numberer{template: template, repo: repo}, nil
}

func (n *Numberer) Next(ctx context.Context, tx *gorm.DB, issuedAt time.Time) (string, error) {
	seq, err := n.repo.NextSequence(ctx, tx, invoicedomain.DefaultSequence)
	if err != nil {
		return "", err
	}
	return format.FormatInvoiceNumber(n.template, issuedAt, seq)
}
