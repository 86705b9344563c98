package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"discoverly/models"
	"discoverly/utils"
)

//go:generate mockgen -source=points.go -destination=mock/points.go -package=mock

// PointsAwarder appends an entry to the points ledger through db, which is
// the caller's transaction whenever the award must be atomic with it.
type PointsAwarder interface {
	Award(db *gorm.DB, entry *models.TesterPoints) error
}

// LedgerAwarder is the PointsAwarder backed by the tester_points table.
type LedgerAwarder struct{}

func (LedgerAwarder) Award(db *gorm.DB, entry *models.TesterPoints) error {
	if entry.ActionType == "" || entry.Points <= 0 {
		return InvalidInput("points entry needs an action type and positive points")
	}
	if err := db.Create(entry).Error; err != nil {
		return Internal("append points", err)
	}
	return nil
}

func pointsEntry(userID, programID uint, action, description string) *models.TesterPoints {
	return &models.TesterPoints{
		UserID:        userID,
		BetaProgramID: programID,
		ActionType:    action,
		Points:        models.PointsRewards[action],
		Description:   description,
	}
}

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 100
)

type LeaderboardEntry struct {
	Rank              int     `json:"rank"`
	UserID            uint    `json:"user_id"`
	FullName          *string `json:"full_name"`
	Username          *string `json:"username"`
	AvatarURL         *string `json:"avatar_url"`
	TotalPoints       int64   `json:"total_points"`
	TestsParticipated int64   `json:"tests_participated"`
	CompletedTests    int64   `json:"completed_tests"`
	FeedbackCount     int64   `json:"feedback_count"`
}

type LeaderboardPage struct {
	Entries    []LeaderboardEntry `json:"leaderboard"`
	Pagination utils.Pagination   `json:"pagination"`
}

type TesterStats struct {
	TestsJoined       int64                 `json:"tests_joined"`
	TestsCompleted    int64                 `json:"tests_completed"`
	FeedbackSubmitted int64                 `json:"feedback_submitted"`
	CriticalBugs      int64                 `json:"critical_bugs_found"`
	VotesCast         int64                 `json:"votes_cast"`
	TotalPoints       int64                 `json:"total_points"`
	RewardsClaimed    int64                 `json:"rewards_claimed"`
	AvgRating         *float64              `json:"avg_feedback_rating"`
	Rank              int64                 `json:"rank"`
	RecentActivity    []models.TesterPoints `json:"recent_activity"`
}

// PointsService answers read-side questions about the points ledger.
type PointsService struct {
	db    *gorm.DB
	cache *leaderboardCache
}

func NewPointsService(db *gorm.DB, cacheSize int, cacheTTL time.Duration) *PointsService {
	return &PointsService{
		db:    db,
		cache: newLeaderboardCache(cacheSize, cacheTTL, time.Now),
	}
}

// Invalidate drops cached leaderboard pages. Call it after any committed
// write that changes a leaderboard column: awards, completions, feedback
// removal and profile changes.
func (s *PointsService) Invalidate() {
	if s == nil {
		return
	}
	s.cache.purge()
}

const leaderboardQuery = `
SELECT u.id AS user_id, u.full_name, u.username, u.avatar_url,
	COALESCE(SUM(tp.points), 0) AS total_points,
	COUNT(DISTINCT tp.beta_program_id) AS tests_participated,
	(SELECT COUNT(*) FROM beta_testers bt
		WHERE bt.user_id = u.id AND bt.status = ? AND bt.deleted_at IS NULL) AS completed_tests,
	(SELECT COUNT(*) FROM beta_feedback bf
		WHERE bf.user_id = u.id AND bf.deleted_at IS NULL) AS feedback_count
FROM users u
JOIN tester_points tp ON tp.user_id = u.id
WHERE u.deleted_at IS NULL
GROUP BY u.id, u.full_name, u.username, u.avatar_url
ORDER BY total_points DESC, completed_tests DESC, u.id ASC
LIMIT ? OFFSET ?`

// Leaderboard ranks users by total points, then completed tests.
func (s *PointsService) Leaderboard(ctx context.Context, limit, offset int) (*LeaderboardPage, error) {
	limit = utils.ClampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit)
	if offset < 0 {
		offset = 0
	}

	key := fmt.Sprintf("%d:%d", limit, offset)
	if page, ok := s.cache.get(key); ok {
		return page, nil
	}

	db := s.db.WithContext(ctx)

	entries := []LeaderboardEntry{}
	if err := db.Raw(leaderboardQuery, models.TesterCompleted, limit, offset).Scan(&entries).Error; err != nil {
		return nil, Internal("load leaderboard", err)
	}

	var total int64
	if err := db.Table("tester_points AS tp").
		Joins("JOIN users u ON u.id = tp.user_id").
		Where("u.deleted_at IS NULL").
		Distinct("tp.user_id").
		Count(&total).Error; err != nil {
		return nil, Internal("count leaderboard", err)
	}

	for i := range entries {
		entries[i].Rank = offset + i + 1
	}

	page := &LeaderboardPage{
		Entries:    entries,
		Pagination: utils.Pagination{Limit: limit, Offset: offset, Total: total},
	}
	s.cache.put(key, page)
	return page, nil
}

// Stats aggregates one tester's activity. The counters are independent, so
// they run concurrently.
func (s *PointsService) Stats(ctx context.Context, userID uint) (*TesterStats, error) {
	stats := &TesterStats{}
	g, gctx := errgroup.WithContext(ctx)
	db := func() *gorm.DB { return s.db.WithContext(gctx) }

	g.Go(func() error {
		return db().Model(&models.BetaTester{}).
			Where("user_id = ? AND beta_program_id IS NOT NULL", userID).
			Count(&stats.TestsJoined).Error
	})
	g.Go(func() error {
		return db().Model(&models.BetaTester{}).
			Where("user_id = ? AND status = ?", userID, models.TesterCompleted).
			Count(&stats.TestsCompleted).Error
	})
	g.Go(func() error {
		return db().Model(&models.BetaFeedback{}).
			Where("user_id = ?", userID).
			Count(&stats.FeedbackSubmitted).Error
	})
	g.Go(func() error {
		return db().Model(&models.BetaFeedback{}).
			Where("user_id = ? AND is_critical = ?", userID, true).
			Count(&stats.CriticalBugs).Error
	})
	g.Go(func() error {
		return db().Model(&models.FeatureVote{}).
			Where("user_id = ?", userID).
			Count(&stats.VotesCast).Error
	})
	g.Go(func() error {
		return db().Model(&models.TesterPoints{}).
			Where("user_id = ?", userID).
			Select("COALESCE(SUM(points), 0)").
			Scan(&stats.TotalPoints).Error
	})
	g.Go(func() error {
		return db().Model(&models.BetaReward{}).
			Where("user_id = ? AND status = ?", userID, models.RewardClaimed).
			Count(&stats.RewardsClaimed).Error
	})
	g.Go(func() error {
		var row struct{ Avg *float64 }
		if err := db().Model(&models.BetaFeedback{}).
			Select("AVG(rating) AS avg").
			Where("user_id = ? AND rating IS NOT NULL", userID).
			Scan(&row).Error; err != nil {
			return err
		}
		stats.AvgRating = row.Avg
		return nil
	})
	g.Go(func() error {
		return db().Where("user_id = ?", userID).
			Order("created_at DESC, id DESC").
			Limit(10).
			Find(&stats.RecentActivity).Error
	})
	g.Go(func() error {
		var ahead int64
		err := db().Raw(`
SELECT COUNT(*) FROM (
	SELECT user_id FROM tester_points
	GROUP BY user_id
	HAVING SUM(points) > (SELECT COALESCE(SUM(points), 0) FROM tester_points WHERE user_id = ?)
) ranked`, userID).Scan(&ahead).Error
		stats.Rank = ahead + 1
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, Internal("load tester stats", err)
	}
	if stats.RecentActivity == nil {
		stats.RecentActivity = []models.TesterPoints{}
	}
	return stats, nil
}
