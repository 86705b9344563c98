package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"discoverly/models"
	"discoverly/utils"
)

const (
	msgJoined  = "Successfully joined beta test!"
	msgApplied = "Application submitted! Waiting for builder approval."
)

type JoinInput struct {
	BetaProgramID   uint     `json:"beta_program_id" validate:"required"`
	ProductID       uint     `json:"product_id" validate:"required"`
	Skillset        []string `json:"skillset"`
	DeviceType      string   `json:"device_type" validate:"max=100"`
	ExperienceLevel string   `json:"experience_level" validate:"omitempty,oneof=beginner intermediate advanced expert"`
}

type JoinResult struct {
	Tester       *models.BetaTester `json:"tester"`
	Message      string             `json:"message"`
	PointsEarned int                `json:"points_earned"`
}

// TesterView is a membership with the member's display fields.
type TesterView struct {
	models.BetaTester
	Email     string  `json:"email"`
	FullName  *string `json:"full_name"`
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

// ParticipationView is a membership with its program's headline fields.
type ParticipationView struct {
	models.BetaTester
	ProgramTitle  *string `json:"program_title"`
	ProgramStatus *string `json:"program_status"`
}

// MembershipService manages who is in which beta program.
type MembershipService struct {
	base
}

// Join enrolls caller in an active program. Open programs approve at once
// and award joined_beta points in the same transaction.
func (s *MembershipService) Join(ctx context.Context, caller *models.User, in JoinInput) (*JoinResult, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	result := &JoinResult{}
	err := mutateAtomic(ctx, s.db, func(tx *gorm.DB) error {
		var program models.BetaProgram
		if err := forUpdate(tx).
			Where("id = ? AND status = ?", in.BetaProgramID, models.ProgramActive).
			First(&program).Error; err != nil {
			return lookupErr(err, "Beta program not found or not active", "load beta program")
		}
		if program.ProductID != in.ProductID {
			return InvalidInput("product_id does not match the beta program")
		}

		if program.MaxTesters != nil {
			full, err := programFull(tx, &program)
			if err != nil {
				return err
			}
			if full {
				return CapacityExceeded("This beta test is full")
			}
		}

		var existing int64
		if err := tx.Model(&models.BetaTester{}).
			Where("user_id = ? AND beta_program_id = ?", caller.ID, program.ID).
			Count(&existing).Error; err != nil {
			return Internal("check membership", err)
		}
		if existing > 0 {
			return Conflict("You have already joined this beta test")
		}

		tester := &models.BetaTester{
			UserID:          caller.ID,
			BetaProgramID:   &program.ID,
			ProductID:       program.ProductID,
			Status:          models.TesterPending,
			Skillset:        jsonList(in.Skillset),
			DeviceType:      in.DeviceType,
			ExperienceLevel: in.ExperienceLevel,
		}
		if tester.DeviceType == "" {
			tester.DeviceType = models.DefaultDeviceType
		}
		if tester.ExperienceLevel == "" {
			tester.ExperienceLevel = models.DefaultExperienceLevel
		}
		if program.AccessType == models.AccessOpen {
			tester.Status = models.TesterApproved
			tester.ApprovedAt = utils.Pointer(s.timestamp())
		}

		if err := tx.Create(tester).Error; err != nil {
			if isUniqueViolation(err) {
				return Conflict("You have already joined this beta test")
			}
			return Internal("create beta tester", err)
		}

		result.Tester = tester
		result.Message = msgApplied
		if tester.Status != models.TesterApproved {
			return nil
		}

		entry := pointsEntry(caller.ID, program.ID, models.ActionJoinedBeta,
			fmt.Sprintf("Joined beta test for %s", program.Title))
		if err := s.awarder.Award(tx, entry); err != nil {
			return passThrough(err, "award join points")
		}
		result.Message = msgJoined
		result.PointsEarned = entry.Points
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.PointsEarned > 0 {
		s.points.Invalidate()
	}
	utils.LogEvent("beta_joined", map[string]interface{}{
		"user_id":         caller.ID,
		"beta_program_id": in.BetaProgramID,
		"status":          result.Tester.Status,
	})
	return result, nil
}

func programFull(tx *gorm.DB, program *models.BetaProgram) (bool, error) {
	if program.MaxTesters == nil {
		return false, nil
	}
	var approved int64
	if err := tx.Model(&models.BetaTester{}).
		Where("beta_program_id = ? AND status = ?", program.ID, models.TesterApproved).
		Count(&approved).Error; err != nil {
		return false, Internal("count approved testers", err)
	}
	return approved >= int64(*program.MaxTesters), nil
}

// Approve lets a pending applicant in and emails them.
func (s *MembershipService) Approve(ctx context.Context, caller *models.User, testerID uint) (*models.BetaTester, error) {
	var programTitle string
	changed := false
	tester, err := s.transition(ctx, caller, testerID, models.TesterApproved, func(tx *gorm.DB, t *models.BetaTester, p *models.BetaProgram) error {
		changed = true
		if p != nil {
			programTitle = p.Title
			full, err := programFull(tx, p)
			if err != nil {
				return err
			}
			if full {
				return CapacityExceeded("This beta test is full")
			}
		}
		t.ApprovedAt = utils.Pointer(s.timestamp())
		return nil
	})
	if err != nil || !changed {
		return tester, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, tester.UserID).Error; err == nil {
		s.notify(user.Email, "Your beta application was approved", utils.TemplateTesterApproved, map[string]interface{}{
			"Name":    user.DisplayName(),
			"Program": programTitle,
		})
	}
	return tester, nil
}

func (s *MembershipService) Decline(ctx context.Context, caller *models.User, testerID uint) (*models.BetaTester, error) {
	return s.transition(ctx, caller, testerID, models.TesterDeclined, nil)
}

// Complete closes a membership and awards completed_beta points with it.
func (s *MembershipService) Complete(ctx context.Context, caller *models.User, testerID uint) (*models.BetaTester, error) {
	awarded := false
	tester, err := s.transition(ctx, caller, testerID, models.TesterCompleted, func(tx *gorm.DB, t *models.BetaTester, p *models.BetaProgram) error {
		t.CompletedAt = utils.Pointer(s.timestamp())
		t.Progress = 100
		if p == nil {
			return nil
		}
		entry := pointsEntry(t.UserID, p.ID, models.ActionCompletedBeta,
			fmt.Sprintf("Completed beta test for %s", p.Title))
		if err := s.awarder.Award(tx, entry); err != nil {
			return passThrough(err, "award completion points")
		}
		awarded = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if awarded {
		s.points.Invalidate()
	}
	return tester, nil
}

// transition moves a tester to status next on behalf of the owning builder.
// apply runs inside the transaction before the row is saved. Repeating the
// current status is a no-op.
func (s *MembershipService) transition(
	ctx context.Context,
	caller *models.User,
	testerID uint,
	next string,
	apply func(tx *gorm.DB, t *models.BetaTester, p *models.BetaProgram) error,
) (*models.BetaTester, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}

	var tester models.BetaTester
	err := mutateAtomic(ctx, s.db, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&tester, testerID).Error; err != nil {
			return lookupErr(err, "Tester not found", "load tester")
		}

		program, owner, err := testerOwner(tx, &tester)
		if err != nil {
			return err
		}
		if !CanMutate(caller, Ownership{BuilderID: owner}, ActBuilderManage) {
			return Forbidden("Only the program builder can manage testers")
		}

		if tester.Status == next {
			return nil
		}
		if !tester.CanTransition(next) {
			return InvalidInput(fmt.Sprintf("Cannot move tester from %s to %s", tester.Status, next))
		}

		tester.Status = next
		if apply != nil {
			if err := apply(tx, &tester, program); err != nil {
				return err
			}
		}
		if err := tx.Save(&tester).Error; err != nil {
			return Internal("update tester", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.LogEvent("tester_"+next, map[string]interface{}{
		"tester_id":  tester.ID,
		"builder_id": caller.ID,
	})
	return &tester, nil
}

// testerOwner resolves who manages a membership: the program builder, or
// the product maker for product-level signups.
func testerOwner(tx *gorm.DB, tester *models.BetaTester) (*models.BetaProgram, uint, error) {
	if tester.BetaProgramID == nil {
		var product models.Product
		if err := tx.First(&product, tester.ProductID).Error; err != nil {
			return nil, 0, lookupErr(err, "Product not found", "load product")
		}
		return nil, product.MakerID, nil
	}

	var program models.BetaProgram
	if err := tx.First(&program, *tester.BetaProgramID).Error; err != nil {
		return nil, 0, lookupErr(err, "Beta program not found", "load beta program")
	}
	return &program, program.BuilderID, nil
}

// ListTesters returns a program's members for its builder, optionally
// filtered by status.
func (s *MembershipService) ListTesters(ctx context.Context, caller *models.User, programID uint, status string) ([]TesterView, error) {
	db := s.db.WithContext(ctx)

	var program models.BetaProgram
	if err := db.First(&program, programID).Error; err != nil {
		return nil, lookupErr(err, "Beta program not found", "load beta program")
	}
	if !CanMutate(caller, Ownership{BuilderID: program.BuilderID}, ActBuilderManage) {
		return nil, Forbidden("Only the program builder can view testers")
	}

	return scanTesterViews(db.Where("bt.beta_program_id = ?", program.ID), status)
}

// ListProductTesters returns every membership of a product, including
// product-level signups that belong to no program, for the product's maker.
func (s *MembershipService) ListProductTesters(ctx context.Context, caller *models.User, productID uint, status string) ([]TesterView, error) {
	db := s.db.WithContext(ctx)

	var product models.Product
	if err := db.First(&product, productID).Error; err != nil {
		return nil, lookupErr(err, "Product not found", "load product")
	}
	if !CanMutate(caller, Ownership{BuilderID: product.MakerID}, ActBuilderManage) {
		return nil, Forbidden("Not authorized to view beta testers for this product")
	}

	return scanTesterViews(db.Where("bt.product_id = ?", product.ID), status)
}

func scanTesterViews(db *gorm.DB, status string) ([]TesterView, error) {
	q := db.Table("beta_testers AS bt").
		Select("bt.*, u.email, u.full_name, u.username, u.avatar_url").
		Joins("JOIN users u ON u.id = bt.user_id").
		Where("bt.deleted_at IS NULL")
	if status != "" {
		q = q.Where("bt.status = ?", status)
	}

	views := []TesterView{}
	if err := q.Order("bt.created_at DESC, bt.id DESC").Scan(&views).Error; err != nil {
		return nil, Internal("list testers", err)
	}
	return views, nil
}

// MyParticipations lists every membership of caller, newest first.
func (s *MembershipService) MyParticipations(ctx context.Context, caller *models.User) ([]ParticipationView, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}

	views := []ParticipationView{}
	err := s.db.WithContext(ctx).Table("beta_testers AS bt").
		Select("bt.*, bp.title AS program_title, bp.status AS program_status").
		Joins("LEFT JOIN beta_programs bp ON bp.id = bt.beta_program_id AND bp.deleted_at IS NULL").
		Where("bt.user_id = ? AND bt.deleted_at IS NULL", caller.ID).
		Order("bt.created_at DESC").
		Scan(&views).Error
	if err != nil {
		return nil, Internal("list participations", err)
	}
	return views, nil
}

// SignupForProduct is the lightweight signup straight from a live product
// page; the maker reviews it like any other application.
func (s *MembershipService) SignupForProduct(ctx context.Context, caller *models.User, productID uint) (*models.BetaTester, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}

	var tester *models.BetaTester
	err := mutateAtomic(ctx, s.db, func(tx *gorm.DB) error {
		var product models.Product
		if err := forUpdate(tx).Where("id = ? AND status = ?", productID, models.ProductLive).First(&product).Error; err != nil {
			return lookupErr(err, "Product not found or not live", "load product")
		}

		var existing int64
		if err := tx.Model(&models.BetaTester{}).
			Where("user_id = ? AND product_id = ? AND beta_program_id IS NULL", caller.ID, product.ID).
			Count(&existing).Error; err != nil {
			return Internal("check product signup", err)
		}
		if existing > 0 {
			return Conflict("Already signed up for beta testing")
		}

		tester = &models.BetaTester{
			UserID:          caller.ID,
			ProductID:       product.ID,
			Status:          models.TesterPending,
			Skillset:        jsonList(nil),
			DeviceType:      models.DefaultDeviceType,
			ExperienceLevel: models.DefaultExperienceLevel,
		}
		if err := tx.Create(tester).Error; err != nil {
			if isUniqueViolation(err) {
				return Conflict("Already signed up for beta testing")
			}
			return Internal("create product signup", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tester, nil
}
