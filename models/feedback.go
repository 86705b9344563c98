package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BetaFeedback struct {
	gorm.Model
	BetaProgramID   uint           `gorm:"not null;index" json:"beta_program_id"`
	ProductID       uint           `gorm:"not null;index" json:"product_id"`
	TesterID        uint           `gorm:"not null;index" json:"tester_id"`
	UserID          uint           `gorm:"not null;index" json:"user_id"`
	Category        string         `gorm:"not null;index" json:"category"`
	Title           *string        `json:"title,omitempty"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	Rating          *int           `json:"rating,omitempty"`
	IsCritical      bool           `gorm:"not null" json:"is_critical"`
	IsResolved      bool           `gorm:"not null" json:"is_resolved"`
	Screenshots     datatypes.JSON `json:"screenshots,omitempty"`
	DeviceInfo      datatypes.JSON `json:"device_info,omitempty"`
	BuilderResponse *string        `gorm:"type:text" json:"builder_response,omitempty"`
	RespondedAt     *time.Time     `json:"responded_at,omitempty"`
}

func (BetaFeedback) TableName() string {
	return "beta_feedback"
}
