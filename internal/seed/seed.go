package seed

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/smallbiznis/aguas/internal/accessscope"
	"github.com/smallbiznis/aguas/internal/config"
	identitydomain "github.com/smallbiznis/aguas/internal/identity/domain"
	invoicedomain "github.com/smallbiznis/aguas/internal/invoice/domain"
	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
	tierdomain "github.com/smallbiznis/aguas/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Module seeds the catalog and the invoice sequence on startup, plus the demo
// users and meters when BOOTSTRAP_SEED is on. It must be registered after the
// migrations module.
var Module = fx.Module("seed",
	fx.Provide(New),
	fx.Invoke(func(s *Seeder) error {
		return s.Run(context.Background())
	}),
)

type demoUser struct {
	fullName string
	email    string
	role     identitydomain.Role
}

var demoUsers = []demoUser{
	{"Tiago", "admin@mail", identitydomain.RoleAdmin},
	{"Joaquim", "employee@mail", identitydomain.RoleEmployee},
	{"Joana", "customer@mail", identitydomain.RoleCustomer},
	{"Bruno", "customer2@mail", identitydomain.RoleCustomer},
}

type demoMeter struct {
	address    string
	ownerEmail string
}

var demoMeters = []demoMeter{
	{"Rua das Flores", "customer@mail"},
	{"Rua das Cores", "customer2@mail"},
}

const serialAttempts = 5

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	Billing *config.BillingConfigHolder
	Catalog tierdomain.Catalog
	Users   identitydomain.Service
	Meters  meterdomain.Service
}

type Seeder struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     config.Config
	billing *config.BillingConfigHolder
	catalog tierdomain.Catalog
	users   identitydomain.Service
	meters  meterdomain.Service
	serial  func() int64
}

func New(p Params) *Seeder {
	return &Seeder{
		db:      p.DB,
		log:     p.Log.Named("seed"),
		cfg:     p.Config,
		billing: p.Billing,
		catalog: p.Catalog,
		users:   p.Users,
		meters:  p.Meters,
		serial:  randomSerial,
	}
}

func (s *Seeder) Run(ctx context.Context) error {
	if err := s.EnsureCatalog(ctx); err != nil {
		return err
	}
	if err := EnsureInvoiceSequence(ctx, s.db); err != nil {
		return err
	}
	if !s.cfg.Bootstrap.SeedDemoData {
		return nil
	}
	return s.EnsureDemoData(ctx)
}

// EnsureCatalog loads the configured schedule into an empty tier table.
func (s *Seeder) EnsureCatalog(ctx context.Context) error {
	cfg := s.billing.Get()
	reqs := make([]tierdomain.CreateRequest, 0, len(cfg.Tiers))
	for _, tier := range cfg.Tiers {
		reqs = append(reqs, tierdomain.CreateRequest{VolumeLimit: tier.VolumeLimit, UnitPrice: tier.UnitPrice})
	}
	inserted, err := s.catalog.SyncFromConfig(ctx, reqs)
	if err != nil {
		return err
	}
	if inserted > 0 {
		s.log.Info("tier catalog seeded", zap.Int("tiers", inserted))
	}
	return nil
}

// EnsureInvoiceSequence creates the invoice counter row if it is missing.
func EnsureInvoiceSequence(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	seq := invoicedomain.InvoiceSequence{Name: invoicedomain.DefaultSequence, NextValue: 1}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seq).Error
}

// EnsureDemoData creates the demo users and, when no meter exists yet, one
// meter per demo customer.
func (s *Seeder) EnsureDemoData(ctx context.Context) error {
	owners := make(map[string]*identitydomain.User, len(demoUsers))
	for _, u := range demoUsers {
		user, err := s.ensureUser(ctx, u)
		if err != nil {
			return err
		}
		owners[u.email] = user
	}

	existing, err := s.meters.ListMetersFor(ctx, accessscope.All())
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, m := range demoMeters {
		owner := owners[m.ownerEmail]
		if err := s.createMeter(ctx, m.address, owner); err != nil {
			return err
		}
	}
	s.log.Info("demo data seeded", zap.Int("users", len(demoUsers)), zap.Int("meters", len(demoMeters)))
	return nil
}

func (s *Seeder) ensureUser(ctx context.Context, u demoUser) (*identitydomain.User, error) {
	user, err := s.users.ResolveUser(ctx, u.email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, identitydomain.ErrUserNotFound) {
		return nil, err
	}
	return s.users.Create(ctx, identitydomain.CreateRequest{
		Email:    u.email,
		FullName: u.fullName,
		Role:     string(u.role),
	})
}

func (s *Seeder) createMeter(ctx context.Context, address string, owner *identitydomain.User) error {
	var err error
	for attempt := 0; attempt < serialAttempts; attempt++ {
		_, err = s.meters.CreateMeter(ctx, meterdomain.CreateMeterRequest{
			Address:      address,
			SerialNumber: s.serial(),
			OwnerID:      owner.ID,
		})
		if !errors.Is(err, meterdomain.ErrDuplicateSerialNumber) {
			return err
		}
	}
	return err
}

// randomSerial returns a 7-digit serial number.
func randomSerial() int64 {
	return 1_000_000 + rand.Int64N(9_000_000)
}
