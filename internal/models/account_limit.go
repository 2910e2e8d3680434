package models

import "time"

// DefaultLimitAccountID is the well-known key of the system-wide fallback limit row.
const DefaultLimitAccountID = "__default__"

// AccountLimit stores a proposal ceiling for one account, or the system default
// when AccountID equals DefaultLimitAccountID. A nil ProposalLimit means unlimited.
type AccountLimit struct {
	AccountID string `gorm:"type:varchar(64);primaryKey"` // Owning account or DefaultLimitAccountID.

	ProposalLimit *int `gorm:"column:proposal_limit"` // Ceiling; nil means no ceiling.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
