// Package testutil builds throwaway databases and fixtures for package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"discoverly/models"
)

// SetupTestDB opens a migrated SQLite database in a per-test temp dir.
// One connection keeps transactions serialized the way row locks would.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "discoverly.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get DB instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()

	id := uuid.NewString()
	user := &models.User{
		ExternalID: "idp|" + id,
		Email:      id[:8] + "@example.com",
		FullName:   ptr("Tester " + id[:4]),
		Role:       role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func CreateProduct(t *testing.T, db *gorm.DB, maker *models.User, status string) *models.Product {
	t.Helper()

	product := &models.Product{
		MakerID: maker.ID,
		Name:    "Product " + uuid.NewString()[:6],
		Tagline: "Ship faster",
		Status:  status,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}
	return product
}

// ProgramOption customizes a program fixture before insert.
type ProgramOption func(*models.BetaProgram)

func WithAccess(access string) ProgramOption {
	return func(p *models.BetaProgram) { p.AccessType = access }
}

func WithMaxTesters(n int) ProgramOption {
	return func(p *models.BetaProgram) { p.MaxTesters = &n }
}

func WithStatus(status string) ProgramOption {
	return func(p *models.BetaProgram) { p.Status = status }
}

func CreateProgram(t *testing.T, db *gorm.DB, builder *models.User, product *models.Product, opts ...ProgramOption) *models.BetaProgram {
	t.Helper()

	now := time.Now().UTC()
	program := &models.BetaProgram{
		ProductID:   product.ID,
		BuilderID:   builder.ID,
		Title:       "Beta " + product.Name,
		Description: "Help us test",
		AccessType:  models.AccessOpen,
		Status:      models.ProgramActive,
		StartDate:   now,
		EndDate:     now.AddDate(0, 1, 0),
	}
	for _, opt := range opts {
		opt(program)
	}
	if err := db.Create(program).Error; err != nil {
		t.Fatalf("Failed to create program: %v", err)
	}
	return program
}

func CreateTester(t *testing.T, db *gorm.DB, user *models.User, program *models.BetaProgram, status string) *models.BetaTester {
	t.Helper()

	tester := &models.BetaTester{
		UserID:          user.ID,
		BetaProgramID:   &program.ID,
		ProductID:       program.ProductID,
		Status:          status,
		DeviceType:      models.DefaultDeviceType,
		ExperienceLevel: models.DefaultExperienceLevel,
	}
	if err := db.Create(tester).Error; err != nil {
		t.Fatalf("Failed to create tester: %v", err)
	}
	return tester
}

func CreateFeature(t *testing.T, db *gorm.DB, creator *models.User, program *models.BetaProgram) *models.FeatureRequest {
	t.Helper()

	feature := &models.FeatureRequest{
		BetaProgramID: program.ID,
		ProductID:     program.ProductID,
		UserID:        creator.ID,
		Title:         "Dark mode",
		Description:   "Please add a dark theme",
		Category:      models.DefaultFeatureCategory,
		Priority:      models.PriorityMedium,
		Status:        models.FeatureProposed,
	}
	if err := db.Create(feature).Error; err != nil {
		t.Fatalf("Failed to create feature: %v", err)
	}
	return feature
}

func CreateReward(t *testing.T, db *gorm.DB, tester *models.BetaTester, expiresAt *time.Time) *models.BetaReward {
	t.Helper()

	reward := &models.BetaReward{
		BetaProgramID: *tester.BetaProgramID,
		TesterID:      tester.ID,
		UserID:        tester.UserID,
		RewardType:    "gift_card",
		Status:        models.RewardPending,
		ExpiresAt:     expiresAt,
	}
	if err := db.Create(reward).Error; err != nil {
		t.Fatalf("Failed to create reward: %v", err)
	}
	return reward
}

// AwardPoints appends a raw ledger row, bypassing any business flow.
func AwardPoints(t *testing.T, db *gorm.DB, user *models.User, programID uint, action string, points int) {
	t.Helper()

	entry := &models.TesterPoints{
		UserID:        user.ID,
		BetaProgramID: programID,
		ActionType:    action,
		Points:        points,
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("Failed to award points: %v", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
