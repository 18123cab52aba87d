// Package domain contains the merchant account model.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/veeville2011/try-this-look-sub005/internal/trial"
)

// Account is one merchant installation, keyed by normalized shop domain.
type Account struct {
	ID                   snowflake.ID `gorm:"primaryKey" json:"id"`
	ShopDomain           string       `gorm:"type:text;not null;uniqueIndex" json:"shop_domain"`
	PlanID               string       `gorm:"type:text;not null" json:"plan_id"`
	TrialStartedAt       *time.Time   `gorm:"column:trial_started_at" json:"trial_started_at,omitempty"`
	TrialDurationSeconds int64        `gorm:"not null;default:0" json:"-"`
	TrialEnded           bool         `gorm:"not null;default:false" json:"trial_ended"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// TrialState projects the persisted trial columns into the trial package's
// state value.
func (a Account) TrialState() trial.State {
	return trial.State{
		StartedAt: a.TrialStartedAt,
		Duration:  time.Duration(a.TrialDurationSeconds) * time.Second,
		Ended:     a.TrialEnded,
	}
}

// NormalizeShopDomain lowercases a shop domain and strips scheme, path and
// trailing dots so the same shop always maps to one account.
func NormalizeShopDomain(raw string) string {
	domain := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range []string{"https://", "http://"} {
		domain = strings.TrimPrefix(domain, prefix)
	}
	if idx := strings.IndexAny(domain, "/?#"); idx >= 0 {
		domain = domain[:idx]
	}
	return strings.Trim(domain, ".")
}
