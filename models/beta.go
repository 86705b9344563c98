package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AccessOpen     = "open"
	AccessApproval = "approval"
)

const (
	ProgramDraft     = "draft"
	ProgramActive    = "active"
	ProgramPaused    = "paused"
	ProgramCompleted = "completed"
	ProgramCancelled = "cancelled"
)

const (
	TesterPending   = "pending"
	TesterApproved  = "approved"
	TesterActive    = "active"
	TesterCompleted = "completed"
	TesterDeclined  = "declined"
)

const (
	DefaultDeviceType      = "All Devices"
	DefaultExperienceLevel = "intermediate"
)

// BetaProgram is a builder-owned beta campaign for one product.
// RewardValue is opaque here; only clients interpret it.
type BetaProgram struct {
	gorm.Model
	ProductID    uint           `gorm:"not null;index" json:"product_id"`
	BuilderID    uint           `gorm:"not null;index" json:"builder_id"`
	Title        string         `gorm:"not null" json:"title"`
	Description  string         `gorm:"type:text;not null" json:"description"`
	Requirements *string        `gorm:"type:text" json:"requirements,omitempty"`
	Category     *string        `gorm:"index" json:"category,omitempty"`
	AccessType   string         `gorm:"not null;default:'open'" json:"access_type"`
	MaxTesters   *int           `json:"max_testers,omitempty"`
	RewardType   *string        `json:"reward_type,omitempty"`
	RewardValue  datatypes.JSON `json:"reward_value,omitempty"`
	Status       string         `gorm:"not null;default:'active';index" json:"status"`
	StartDate    time.Time      `json:"start_date"`
	EndDate      time.Time      `gorm:"index" json:"end_date"`
}

// ValidProgramStatus reports whether s is a known program status.
func ValidProgramStatus(s string) bool {
	switch s {
	case ProgramDraft, ProgramActive, ProgramPaused, ProgramCompleted, ProgramCancelled:
		return true
	}
	return false
}

func ValidAccessType(s string) bool {
	return s == AccessOpen || s == AccessApproval
}

// BetaTester links a user to a program, or directly to a product for the
// simpler product signup where BetaProgramID stays nil.
type BetaTester struct {
	gorm.Model
	UserID          uint           `gorm:"not null;uniqueIndex:idx_tester_user_program;index" json:"user_id"`
	BetaProgramID   *uint          `gorm:"uniqueIndex:idx_tester_user_program" json:"beta_program_id"`
	ProductID       uint           `gorm:"not null;index" json:"product_id"`
	Status          string         `gorm:"not null;default:'pending';index" json:"status"`
	Progress        int            `gorm:"not null;default:0" json:"progress"`
	Skillset        datatypes.JSON `json:"skillset"`
	DeviceType      string         `json:"device_type"`
	ExperienceLevel string         `json:"experience_level"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	RewardClaimed   bool           `gorm:"not null" json:"reward_claimed"`
	RewardClaimedAt *time.Time     `json:"reward_claimed_at,omitempty"`
}

var testerTransitions = map[string][]string{
	TesterPending:   {TesterApproved, TesterDeclined},
	TesterApproved:  {TesterActive, TesterCompleted, TesterDeclined},
	TesterActive:    {TesterCompleted},
	TesterCompleted: {},
	TesterDeclined:  {TesterApproved},
}

// CanTransition reports whether the membership may move to status next.
func (t *BetaTester) CanTransition(next string) bool {
	for _, s := range testerTransitions[t.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// CanGiveFeedback is true for members the builder has let in.
func (t *BetaTester) CanGiveFeedback() bool {
	switch t.Status {
	case TesterApproved, TesterActive, TesterCompleted:
		return true
	}
	return false
}

// FeedbackProgress is the progress after one more accepted feedback, capped at 100.
func FeedbackProgress(current int) int {
	if current+ProgressPerFeedback > 100 {
		return 100
	}
	return current + ProgressPerFeedback
}
