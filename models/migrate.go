package models

import (
	"fmt"

	"gorm.io/gorm"
)

// productSignupIndex keeps one product-level signup per user. The
// (user_id, beta_program_id) index cannot, since NULL program ids never
// collide.
const productSignupIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_tester_user_product_signup
ON beta_testers (user_id, product_id)
WHERE beta_program_id IS NULL AND deleted_at IS NULL`

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&Product{},
		&BetaProgram{},
		&BetaTester{},
		&BetaFeedback{},
		&FeatureRequest{},
		&FeatureVote{},
		&TesterPoints{},
		&BetaReward{},
	); err != nil {
		return err
	}
	if err := db.Exec(productSignupIndex).Error; err != nil {
		return fmt.Errorf("create product signup index: %w", err)
	}
	return nil
}
