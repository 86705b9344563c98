package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	FeatureProposed   = "proposed"
	FeaturePlanned    = "planned"
	FeatureInProgress = "in_progress"
	FeatureShipped    = "shipped"
	FeatureDeclined   = "declined"
)

const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

const (
	VoteUp   = "upvote"
	VoteDown = "downvote"
)

const DefaultFeatureCategory = "Feature"

// FeatureRequest is a suggestion raised inside a beta program.
// Upvotes and Downvotes are recomputed from FeatureVote rows on every vote.
type FeatureRequest struct {
	gorm.Model
	BetaProgramID uint       `gorm:"not null;index" json:"beta_program_id"`
	ProductID     uint       `gorm:"not null;index" json:"product_id"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	Title         string     `gorm:"not null" json:"title"`
	Description   string     `gorm:"type:text;not null" json:"description"`
	Category      string     `gorm:"not null" json:"category"`
	Priority      string     `gorm:"not null" json:"priority"`
	Status        string     `gorm:"not null;index" json:"status"`
	Upvotes       int        `gorm:"not null" json:"upvotes"`
	Downvotes     int        `gorm:"not null" json:"downvotes"`
	BuilderNotes  *string    `gorm:"type:text" json:"builder_notes,omitempty"`
	EstimatedDate *time.Time `json:"estimated_date,omitempty"`
	ShippedDate   *time.Time `json:"shipped_date,omitempty"`

	Score int `gorm:"-" json:"score"`
}

func (f *FeatureRequest) AfterFind(tx *gorm.DB) error {
	f.Score = f.Upvotes - f.Downvotes
	return nil
}

func ValidFeatureStatus(s string) bool {
	switch s {
	case FeatureProposed, FeaturePlanned, FeatureInProgress, FeatureShipped, FeatureDeclined:
		return true
	}
	return false
}

func ValidPriority(s string) bool {
	switch s {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

func ValidVoteType(s string) bool {
	return s == VoteUp || s == VoteDown
}

// FeatureVote is one user's vote on one feature. Rows are hard deleted when
// a vote is toggled off.
type FeatureVote struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	FeatureRequestID uint      `gorm:"not null;uniqueIndex:idx_feature_vote_user" json:"feature_request_id"`
	UserID           uint      `gorm:"not null;uniqueIndex:idx_feature_vote_user;index" json:"user_id"`
	VoteType         string    `gorm:"not null" json:"vote_type"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
