package models

import "time"

// GenerationOutcome classifies one call to the generation service.
type GenerationOutcome string

const (
	GenerationCompleted   GenerationOutcome = "completed"
	GenerationFailed      GenerationOutcome = "failed"
	GenerationUnavailable GenerationOutcome = "unavailable"
)

// Usage records one generation attempt with its token consumption.
type Usage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ProposalID string `gorm:"type:varchar(36);index"` // Proposal being generated.
	UserID     string `gorm:"type:varchar(36);index"` // Owning account.

	Provider string            `gorm:"type:varchar(32)"`                // Generation backend.
	Model    string            `gorm:"type:varchar(128)"`               // Model name, when known.
	Outcome  GenerationOutcome `gorm:"type:varchar(16);not null;index"` // Attempt result.
	Error    string            `gorm:"type:text"`                       // Failure detail for operators.

	InputTokens  int64 `gorm:"not null;default:0"` // Prompt tokens.
	OutputTokens int64 `gorm:"not null;default:0"` // Generated tokens.
	TotalTokens  int64 `gorm:"not null;default:0"` // Billed tokens.
	DurationMs   int64 `gorm:"not null;default:0"` // Wall time of the call.

	RequestedAt time.Time `gorm:"not null;index"`          // Attempt start.
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"` // Insert timestamp.
}
