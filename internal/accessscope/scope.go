// Package accessscope turns an authenticated caller into the set of meters and
// consumptions they may see.
//
// It is the only place that interprets roles for data visibility. Queries apply
// the scope as gorm scopes and expect the aliases m (meters), c (consumptions)
// and u (the owning users row).
package accessscope

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type kind uint8

const (
	kindNone kind = iota
	kindOwned
	kindAll
)

// Scope is either Owned(ownerID) or All(). The zero value matches nothing.
type Scope struct {
	kind    kind
	ownerID snowflake.ID
}

func Owned(ownerID snowflake.ID) Scope {
	return Scope{kind: kindOwned, ownerID: ownerID}
}

func All() Scope {
	return Scope{kind: kindAll}
}

func (s Scope) IsAll() bool { return s.kind == kindAll }

// OwnerID reports the owner for an Owned scope.
func (s Scope) OwnerID() (snowflake.ID, bool) {
	if s.kind != kindOwned {
		return 0, false
	}
	return s.ownerID, true
}

// Allows reports whether a record owned by ownerID is visible.
func (s Scope) Allows(ownerID snowflake.ID) bool {
	switch s.kind {
	case kindAll:
		return true
	case kindOwned:
		return ownerID != 0 && s.ownerID == ownerID
	default:
		return false
	}
}

func (s Scope) String() string {
	switch s.kind {
	case kindAll:
		return "all"
	case kindOwned:
		return fmt.Sprintf("owned:%s", s.ownerID)
	default:
		return "none"
	}
}

// Meters filters and orders a meters query.
// All: owner name, then meter id. Owned: meter id.
func (s Scope) Meters() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch s.kind {
		case kindAll:
			return db.Order("u.full_name ASC").Order("m.id ASC")
		case kindOwned:
			return db.Where("m.owner_id = ?", s.ownerID).Order("m.id ASC")
		default:
			return db.Where("1 = 0")
		}
	}
}

// Consumptions filters and orders a consumptions query.
// All: owner name, then reading date descending, then id descending.
// Owned: reading date descending, then id descending.
func (s Scope) Consumptions() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch s.kind {
		case kindAll:
			return db.Order("u.full_name ASC").Order("c.reading_date DESC").Order("c.id DESC")
		case kindOwned:
			return db.Where("m.owner_id = ?", s.ownerID).Order("c.reading_date DESC").Order("c.id DESC")
		default:
			return db.Where("1 = 0")
		}
	}
}
