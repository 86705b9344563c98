package services

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"discoverly/models"
	"discoverly/utils"
)

const (
	SortPopular    = "popular"
	SortEndingSoon = "ending_soon"
)

const (
	defaultProgramLimit = 20
	maxProgramLimit     = 100
	activityWindowDays  = 30
)

type CreateProgramInput struct {
	ProductID    uint        `json:"product_id" validate:"required"`
	Title        string      `json:"title" validate:"required,min=3,max=200"`
	Description  string      `json:"description" validate:"required"`
	Requirements *string     `json:"requirements"`
	Category     *string     `json:"category"`
	AccessType   string      `json:"access_type" validate:"omitempty,oneof=open approval"`
	MaxTesters   *int        `json:"max_testers" validate:"omitempty,min=1"`
	RewardType   *string     `json:"reward_type"`
	RewardValue  interface{} `json:"reward_value"`
	StartDate    time.Time   `json:"start_date" validate:"required"`
	EndDate      time.Time   `json:"end_date" validate:"required,gtfield=StartDate"`
}

type ProgramFilter struct {
	// Status defaults to active; "all" disables the filter.
	Status   string
	Category string
	Sort     string
	Limit    int
	Offset   int
}

type ProgramView struct {
	models.BetaProgram
	TesterCount   int64 `json:"tester_count"`
	FeedbackCount int64 `json:"feedback_count"`
}

type ProgramPage struct {
	Programs   []ProgramView    `json:"programs"`
	Pagination utils.Pagination `json:"pagination"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type ProgramAnalytics struct {
	TestersByStatus    map[string]int64 `json:"testers_by_status"`
	TotalTesters       int64            `json:"total_testers"`
	FeedbackTotal      int64            `json:"feedback_total"`
	CriticalFeedback   int64            `json:"critical_feedback"`
	ResolvedFeedback   int64            `json:"resolved_feedback"`
	AvgRating          *float64         `json:"avg_rating"`
	FeatureRequests    int64            `json:"feature_requests"`
	TotalVotes         int64            `json:"total_votes"`
	FeedbackByCategory []CategoryCount  `json:"feedback_by_category"`
	DailyActivity      []DailyCount     `json:"daily_activity"`
}

// ProgramService owns the lifecycle of beta programs.
type ProgramService struct {
	base
}

const programViewColumns = `bp.*,
	(SELECT COUNT(*) FROM beta_testers bt WHERE bt.beta_program_id = bp.id
		AND bt.status IN ('approved', 'active', 'completed') AND bt.deleted_at IS NULL) AS tester_count,
	(SELECT COUNT(*) FROM beta_feedback bf WHERE bf.beta_program_id = bp.id
		AND bf.deleted_at IS NULL) AS feedback_count`

// BuilderProgramView is a program on its builder's dashboard.
type BuilderProgramView struct {
	ProgramView
	ProductName      string   `json:"product_name"`
	AvgRating        *float64 `json:"avg_rating"`
	CompletedTesters int64    `json:"completed_testers"`
}

const builderProgramColumns = programViewColumns + `,
	p.name AS product_name,
	(SELECT AVG(bf.rating) FROM beta_feedback bf WHERE bf.beta_program_id = bp.id
		AND bf.rating IS NOT NULL AND bf.deleted_at IS NULL) AS avg_rating,
	(SELECT COUNT(*) FROM beta_testers bt WHERE bt.beta_program_id = bp.id
		AND bt.status = 'completed' AND bt.deleted_at IS NULL) AS completed_testers`

func (s *ProgramService) Create(ctx context.Context, caller *models.User, in CreateProgramInput) (*models.BetaProgram, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}
	if !CanMutate(caller, Ownership{}, ActCreateProgram) {
		return nil, Forbidden("Only builders can create beta programs")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	rewardValue, err := jsonValue(in.RewardValue)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var product models.Product
	if err := db.First(&product, in.ProductID).Error; err != nil {
		return nil, lookupErr(err, "Product not found", "load product")
	}
	if !CanMutate(caller, Ownership{BuilderID: product.MakerID}, ActBuilderManage) {
		return nil, Forbidden("You can only run beta programs for your own products")
	}

	program := &models.BetaProgram{
		ProductID:    product.ID,
		BuilderID:    caller.ID,
		Title:        in.Title,
		Description:  in.Description,
		Requirements: in.Requirements,
		Category:     in.Category,
		AccessType:   in.AccessType,
		MaxTesters:   in.MaxTesters,
		RewardType:   in.RewardType,
		RewardValue:  rewardValue,
		Status:       models.ProgramActive,
		StartDate:    in.StartDate.UTC(),
		EndDate:      in.EndDate.UTC(),
	}
	if program.AccessType == "" {
		program.AccessType = models.AccessOpen
	}

	if err := db.Create(program).Error; err != nil {
		return nil, Internal("create beta program", err)
	}
	utils.LogEvent("beta_program_created", map[string]interface{}{
		"beta_program_id": program.ID,
		"builder_id":      caller.ID,
	})
	return program, nil
}

func (s *ProgramService) List(ctx context.Context, f ProgramFilter) (*ProgramPage, error) {
	limit := utils.ClampLimit(f.Limit, defaultProgramLimit, maxProgramLimit)
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	filtered := func() *gorm.DB {
		q := s.db.WithContext(ctx).Table("beta_programs AS bp").Where("bp.deleted_at IS NULL")
		switch f.Status {
		case "all":
		case "":
			q = q.Where("bp.status = ?", models.ProgramActive)
		default:
			q = q.Where("bp.status = ?", f.Status)
		}
		if f.Category != "" {
			q = q.Where("bp.category = ?", f.Category)
		}
		return q
	}

	q := filtered().Select(programViewColumns)
	switch f.Sort {
	case SortPopular:
		q = q.Order("tester_count DESC").Order("bp.created_at DESC")
	case SortEndingSoon:
		q = q.Order("bp.end_date ASC")
	default:
		q = q.Order("bp.created_at DESC")
	}

	page := &ProgramPage{Programs: []ProgramView{}}
	if err := q.Order("bp.id DESC").Limit(limit).Offset(offset).Scan(&page.Programs).Error; err != nil {
		return nil, Internal("list beta programs", err)
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, Internal("count beta programs", err)
	}
	page.Pagination = utils.Pagination{Limit: limit, Offset: offset, Total: total}
	return page, nil
}

// ListMine returns every program caller builds, whatever its status, newest
// first.
func (s *ProgramService) ListMine(ctx context.Context, caller *models.User) ([]BuilderProgramView, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}

	views := []BuilderProgramView{}
	if err := s.db.WithContext(ctx).Table("beta_programs AS bp").
		Select(builderProgramColumns).
		Joins("JOIN products p ON p.id = bp.product_id").
		Where("bp.builder_id = ? AND bp.deleted_at IS NULL", caller.ID).
		Order("bp.created_at DESC, bp.id DESC").
		Scan(&views).Error; err != nil {
		return nil, Internal("list builder programs", err)
	}
	return views, nil
}

func (s *ProgramService) Get(ctx context.Context, id uint) (*ProgramView, error) {
	var views []ProgramView
	if err := s.db.WithContext(ctx).Table("beta_programs AS bp").
		Select(programViewColumns).
		Where("bp.id = ? AND bp.deleted_at IS NULL", id).
		Limit(1).
		Scan(&views).Error; err != nil {
		return nil, Internal("load beta program", err)
	}
	if len(views) == 0 {
		return nil, NotFound("Beta program not found")
	}
	return &views[0], nil
}

func (s *ProgramService) Update(ctx context.Context, caller *models.User, id uint, patch ProgramPatch) (*models.BetaProgram, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}

	var program models.BetaProgram
	err := mutateAtomic(ctx, s.db, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&program, id).Error; err != nil {
			return lookupErr(err, "Beta program not found", "load beta program")
		}
		if !CanMutate(caller, Ownership{BuilderID: program.BuilderID}, ActBuilderManage) {
			return Forbidden("Not authorized to update this beta program")
		}

		cols, err := patch.columns(&program)
		if err != nil {
			return err
		}
		if err := tx.Model(&program).Updates(cols).Error; err != nil {
			return Internal("update beta program", err)
		}
		return tx.First(&program, id).Error
	})
	if err != nil {
		return nil, passThrough(err, "update beta program")
	}
	return &program, nil
}

func (s *ProgramService) Delete(ctx context.Context, caller *models.User, id uint) error {
	if caller == nil {
		return Unauthorized("Authentication required")
	}
	db := s.db.WithContext(ctx)

	var program models.BetaProgram
	if err := db.First(&program, id).Error; err != nil {
		return lookupErr(err, "Beta program not found", "load beta program")
	}
	if !CanMutate(caller, Ownership{BuilderID: program.BuilderID}, ActBuilderManage) {
		return Forbidden("Not authorized to delete this beta program")
	}
	if err := db.Delete(&program).Error; err != nil {
		return Internal("delete beta program", err)
	}
	return nil
}

// Analytics summarizes a program for its builder. Every figure is an
// independent query and they run concurrently.
func (s *ProgramService) Analytics(ctx context.Context, caller *models.User, id uint) (*ProgramAnalytics, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}

	var program models.BetaProgram
	if err := s.db.WithContext(ctx).First(&program, id).Error; err != nil {
		return nil, lookupErr(err, "Beta program not found", "load beta program")
	}
	if !CanMutate(caller, Ownership{BuilderID: program.BuilderID}, ActBuilderManage) {
		return nil, Forbidden("Not authorized to view analytics for this program")
	}

	out := &ProgramAnalytics{TestersByStatus: map[string]int64{}}
	since := s.timestamp().AddDate(0, 0, -activityWindowDays)

	g, gctx := errgroup.WithContext(ctx)
	db := func() *gorm.DB { return s.db.WithContext(gctx) }
	feedback := func() *gorm.DB { return db().Model(&models.BetaFeedback{}).Where("beta_program_id = ?", program.ID) }

	g.Go(func() error {
		var rows []struct {
			Status string
			Count  int64
		}
		if err := db().Model(&models.BetaTester{}).
			Select("status, COUNT(*) AS count").
			Where("beta_program_id = ?", program.ID).
			Group("status").
			Scan(&rows).Error; err != nil {
			return err
		}
		// written only by this goroutine until Wait returns
		for _, r := range rows {
			out.TestersByStatus[r.Status] = r.Count
			out.TotalTesters += r.Count
		}
		return nil
	})
	g.Go(func() error {
		return feedback().Count(&out.FeedbackTotal).Error
	})
	g.Go(func() error {
		return feedback().Where("is_critical = ?", true).Count(&out.CriticalFeedback).Error
	})
	g.Go(func() error {
		return feedback().Where("is_resolved = ?", true).Count(&out.ResolvedFeedback).Error
	})
	g.Go(func() error {
		var row struct{ Avg *float64 }
		if err := feedback().Select("AVG(rating) AS avg").Where("rating IS NOT NULL").Scan(&row).Error; err != nil {
			return err
		}
		out.AvgRating = row.Avg
		return nil
	})
	g.Go(func() error {
		return db().Model(&models.FeatureRequest{}).Where("beta_program_id = ?", program.ID).Count(&out.FeatureRequests).Error
	})
	g.Go(func() error {
		return db().Table("feature_votes AS fv").
			Joins("JOIN feature_requests fr ON fr.id = fv.feature_request_id").
			Where("fr.beta_program_id = ? AND fr.deleted_at IS NULL", program.ID).
			Count(&out.TotalVotes).Error
	})
	g.Go(func() error {
		out.FeedbackByCategory = []CategoryCount{}
		return feedback().
			Select("category, COUNT(*) AS count").
			Group("category").
			Order("count DESC").
			Scan(&out.FeedbackByCategory).Error
	})
	g.Go(func() error {
		var stamps []time.Time
		if err := feedback().Where("created_at >= ?", since).Pluck("created_at", &stamps).Error; err != nil {
			return err
		}
		out.DailyActivity = bucketByDay(stamps)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, Internal("load program analytics", err)
	}
	return out, nil
}

// bucketByDay counts timestamps per UTC calendar day, oldest day first.
func bucketByDay(stamps []time.Time) []DailyCount {
	counts := map[string]int64{}
	for _, t := range stamps {
		counts[t.UTC().Format("2006-01-02")]++
	}

	days := make([]DailyCount, 0, len(counts))
	for day, n := range counts {
		days = append(days, DailyCount{Date: day, Count: n})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}
