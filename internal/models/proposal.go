package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProposalStatus is the lifecycle state of a proposal document.
type ProposalStatus string

// ProposalStatus constants define the proposal lifecycle.
const (
	// ProposalStatusDraft marks a proposal that has not been generated yet.
	ProposalStatusDraft ProposalStatus = "draft"
	// ProposalStatusGenerating marks a generation attempt in flight.
	ProposalStatusGenerating ProposalStatus = "generating"
	// ProposalStatusCompleted marks a successfully generated proposal.
	ProposalStatusCompleted ProposalStatus = "completed"
	// ProposalStatusError marks a failed generation attempt.
	ProposalStatusError ProposalStatus = "error"
)

// Valid reports whether s is one of the known lifecycle states.
func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalStatusDraft, ProposalStatusGenerating, ProposalStatusCompleted, ProposalStatusError:
		return true
	default:
		return false
	}
}

// ProposalDetails holds the requester-supplied descriptive fields.
type ProposalDetails struct {
	ProjectName    string   `json:"project_name"`
	ClientName     string   `json:"client_name"`
	ClientCompany  string   `json:"client_company,omitempty"`
	MeetingNotes   string   `json:"meeting_notes"`
	Services       []string `json:"services,omitempty"`
	Budget         string   `json:"budget,omitempty"`
	StartDate      string   `json:"start_date,omitempty"`
	EndDate        string   `json:"end_date,omitempty"`
	Timeline       string   `json:"timeline,omitempty"`
	PrimaryColor   string   `json:"primary_color,omitempty"`
	SecondaryColor string   `json:"secondary_color,omitempty"`
	LogoURL        string   `json:"logo_url,omitempty"`
	Language       string   `json:"language,omitempty"`
	Tone           string   `json:"tone,omitempty"`
}

// Proposal is a generated business proposal document.
type Proposal struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // Proposal identifier (UUID).

	UserID string `gorm:"type:varchar(36);not null;index"` // Owning account.

	Title  string         `gorm:"type:text"`                                      // Display title.
	Status ProposalStatus `gorm:"type:varchar(16);not null;default:'draft';index"` // Lifecycle state.

	Progress        int    `gorm:"not null;default:0"` // 0-100, meaningful while generating.
	ProgressMessage string `gorm:"type:text"`          // Human readable phase.

	Content string `gorm:"type:text"` // Generated document, set once completed.
	Error   string `gorm:"type:text"` // Last attempt failure message.

	Details datatypes.JSONType[ProposalDetails] // Requester-supplied fields.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}

// BeforeCreate assigns a UUID when the caller did not supply one.
func (p *Proposal) BeforeCreate(_ *gorm.DB) error {
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
