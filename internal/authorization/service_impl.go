package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	identitydomain "github.com/smallbiznis/aguas/internal/identity/domain"
	"github.com/smallbiznis/aguas/pkg/apperror"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectMeter       = "meter"
	ObjectConsumption = "consumption"
	ObjectInvoice     = "invoice"
	ObjectTier        = "tier"
)

const (
	ActionView    = "view"
	ActionCreate  = "create"
	ActionDelete  = "delete"
	ActionSubmit  = "submit"
	ActionUpdate  = "update"
	ActionApprove = "approve"
	ActionManage  = "manage"
)

var (
	ErrForbidden     = apperror.New(apperror.KindForbidden, "forbidden", "caller is not allowed to perform this action")
	ErrInvalidObject = apperror.New(apperror.KindValidation, "invalid_object", "object is required")
	ErrInvalidAction = apperror.New(apperror.KindValidation, "invalid_action", "action is required")
)

type Service interface {
	Authorize(ctx context.Context, role identitydomain.Role, object, action string) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role identitydomain.Role, object string, action string) error {
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}
	if _, ok := identitydomain.ParseRole(string(role)); !ok {
		return ErrForbidden
	}

	allowed, err := s.enforcer.Enforce(Subject(role), object, action)
	if err != nil {
		return apperror.Storage(err)
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("role", string(role)),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// Subject is the casbin subject for a role, e.g. "role:employee".
func Subject(role identitydomain.Role) string {
	return fmt.Sprintf("role:%s", strings.ToLower(string(role)))
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	customer := Subject(identitydomain.RoleCustomer)
	employee := Subject(identitydomain.RoleEmployee)
	admin := Subject(identitydomain.RoleAdmin)

	policies := [][]string{
		{customer, ObjectMeter, ActionView},
		{customer, ObjectConsumption, ActionView},
		{customer, ObjectConsumption, ActionSubmit},
		{customer, ObjectConsumption, ActionUpdate},
		{customer, ObjectConsumption, ActionDelete},
		{customer, ObjectInvoice, ActionView},

		{employee, ObjectConsumption, ActionApprove},
		{employee, ObjectTier, ActionView},

		{admin, "*", "*"},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// Employees can do everything a customer can.
	if _, err := enforcer.AddGroupingPolicy(employee, customer); err != nil {
		return err
	}
	return nil
}
