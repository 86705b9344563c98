package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ProductDraft     = "draft"
	ProductScheduled = "scheduled"
	ProductLive      = "live"
	ProductArchived  = "archived"
)

// Product is a launched item owned by its maker.
type Product struct {
	gorm.Model
	MakerID     uint           `gorm:"not null;index" json:"maker_id"`
	Name        string         `gorm:"not null" json:"name"`
	Tagline     string         `json:"tagline"`
	Description string         `gorm:"type:text" json:"description"`
	Category    string         `gorm:"index" json:"category"`
	Tags        datatypes.JSON `json:"tags"`
	Status      string         `gorm:"not null;default:'draft';index" json:"status"`
}
