package services

import (
	"time"

	"gorm.io/gorm"

	"discoverly/utils"
)

//go:generate mockgen -source=services.go -destination=mock/notifier.go -package=mock

// Notifier delivers a templated message to one recipient.
type Notifier interface {
	Send(to, subject, templateName string, data map[string]interface{}) error
}

type Options struct {
	Awarder  PointsAwarder
	Notifier Notifier
	Now      func() time.Time

	LeaderboardCacheSize int
	LeaderboardCacheTTL  time.Duration
}

// Services is every domain service wired over one database handle.
type Services struct {
	Users      *UserService
	Products   *ProductService
	Programs   *ProgramService
	Membership *MembershipService
	Feedback   *FeedbackService
	Features   *FeatureService
	Points     *PointsService
	Rewards    *RewardService
}

func New(db *gorm.DB, opts Options) *Services {
	if opts.Awarder == nil {
		opts.Awarder = LedgerAwarder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	points := NewPointsService(db, opts.LeaderboardCacheSize, opts.LeaderboardCacheTTL)
	b := base{
		db:       db,
		awarder:  opts.Awarder,
		notifier: opts.Notifier,
		points:   points,
		now:      opts.Now,
	}

	return &Services{
		Users:      &UserService{base: b},
		Products:   &ProductService{base: b},
		Programs:   &ProgramService{base: b},
		Membership: &MembershipService{base: b},
		Feedback:   &FeedbackService{base: b},
		Features:   &FeatureService{base: b},
		Points:     points,
		Rewards:    &RewardService{base: b},
	}
}

type base struct {
	db       *gorm.DB
	awarder  PointsAwarder
	notifier Notifier
	points   *PointsService
	now      func() time.Time
}

func (b *base) timestamp() time.Time {
	return b.now().UTC()
}

// notify sends an email on a best-effort basis; failures are only logged.
func (b *base) notify(to, subject, templateName string, data map[string]interface{}) {
	if b.notifier == nil || to == "" {
		return
	}
	if err := b.notifier.Send(to, subject, templateName, data); err != nil {
		utils.LogError("notification_failed", err, map[string]interface{}{
			"template": templateName,
		})
	}
}
