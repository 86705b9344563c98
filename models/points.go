package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionJoinedBeta        = "joined_beta"
	ActionSubmittedFeedback = "submitted_feedback"
	ActionCriticalBug       = "critical_bug"
	ActionFeatureVote       = "feature_vote"
	ActionCompletedBeta     = "completed_beta"
	ActionDailyActive       = "daily_active"
)

// PointsRewards is the value of each ledger action.
var PointsRewards = map[string]int{
	ActionJoinedBeta:        10,
	ActionSubmittedFeedback: 20,
	ActionCriticalBug:       50,
	ActionFeatureVote:       5,
	ActionCompletedBeta:     100,
	ActionDailyActive:       5,
}

const ProgressPerFeedback = 10

// TesterPoints is an append-only ledger entry. Nothing updates or deletes
// these rows; a user's score is the sum over the table.
type TesterPoints struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	BetaProgramID uint      `gorm:"not null;index" json:"beta_program_id"`
	ActionType    string    `gorm:"not null;index" json:"action_type"`
	Points        int       `gorm:"not null" json:"points"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (TesterPoints) TableName() string {
	return "tester_points"
}

const (
	RewardPending = "pending"
	RewardClaimed = "claimed"
	RewardExpired = "expired"
)

type BetaReward struct {
	gorm.Model
	BetaProgramID uint           `gorm:"not null;index" json:"beta_program_id"`
	TesterID      uint           `gorm:"not null;index" json:"tester_id"`
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	RewardType    string         `gorm:"not null" json:"reward_type"`
	RewardDetails datatypes.JSON `json:"reward_details,omitempty"`
	Status        string         `gorm:"not null;index" json:"status"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	ClaimedAt     *time.Time     `json:"claimed_at,omitempty"`
}

// ExpireIfDue moves a pending reward past its expiry to expired and reports
// whether it did. Callers persist the change.
func (r *BetaReward) ExpireIfDue(now time.Time) bool {
	if r.Status != RewardPending || r.ExpiresAt == nil || !now.After(*r.ExpiresAt) {
		return false
	}
	r.Status = RewardExpired
	return true
}
