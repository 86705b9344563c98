package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"discoverly/models"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServices(t *testing.T, db *gorm.DB, configure ...func(*Options)) *Services {
	t.Helper()
	opts := Options{Now: func() time.Time { return fixedNow }}
	for _, c := range configure {
		c(&opts)
	}
	return New(db, opts)
}

func withAwarder(a PointsAwarder) func(*Options) {
	return func(o *Options) { o.Awarder = a }
}

func withNotifier(n Notifier) func(*Options) {
	return func(o *Options) { o.Notifier = n }
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("expected %s error, got %s (%v)", want, got, err)
	}
}

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

func totalPoints(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var total int64
	if err := db.Model(&models.TesterPoints{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error; err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	return total
}

func reloadTester(t *testing.T, db *gorm.DB, id uint) models.BetaTester {
	t.Helper()
	var tester models.BetaTester
	if err := db.First(&tester, id).Error; err != nil {
		t.Fatalf("reload tester: %v", err)
	}
	return tester
}
