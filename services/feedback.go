package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"discoverly/models"
	"discoverly/utils"
)

type SubmitFeedbackInput struct {
	BetaProgramID uint                   `json:"beta_program_id" validate:"required"`
	ProductID     uint                   `json:"product_id" validate:"required"`
	Category      string                 `json:"category" validate:"required,max=50"`
	Title         *string                `json:"title" validate:"omitempty,max=200"`
	Content       string                 `json:"content" validate:"required"`
	Rating        *int                   `json:"rating" validate:"omitempty,min=1,max=5"`
	IsCritical    bool                   `json:"is_critical"`
	Screenshots   []string               `json:"screenshots"`
	DeviceInfo    map[string]interface{} `json:"device_info"`
}

type FeedbackResult struct {
	Feedback     *models.BetaFeedback `json:"feedback"`
	PointsEarned int                  `json:"points_earned"`
}

type FeedbackFilter struct {
	BetaProgramID uint
	ProductID     uint
	Category      string
	UserID        uint
}

// FeedbackView is a feedback entry with its author's display fields.
type FeedbackView struct {
	models.BetaFeedback
	FullName  *string `json:"full_name"`
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

// FeedbackService is the feedback ledger.
type FeedbackService struct {
	base
}

// Submit records feedback from an admitted tester. The feedback row, its
// points and the tester's progress bump commit together or not at all.
func (s *FeedbackService) Submit(ctx context.Context, caller *models.User, in SubmitFeedbackInput) (*FeedbackResult, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	deviceInfo, err := jsonValue(in.DeviceInfo)
	if err != nil {
		return nil, err
	}

	result := &FeedbackResult{}
	err = mutateAtomic(ctx, s.db, func(tx *gorm.DB) error {
		var tester models.BetaTester
		if err := forUpdate(tx).
			Where("user_id = ? AND beta_program_id = ?", caller.ID, in.BetaProgramID).
			First(&tester).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Forbidden("You are not an approved tester for this program")
			}
			return Internal("load tester", err)
		}
		if !tester.CanGiveFeedback() {
			return Forbidden("You are not an approved tester for this program")
		}
		if tester.ProductID != in.ProductID {
			return InvalidInput("product_id does not match the beta program")
		}

		feedback := &models.BetaFeedback{
			BetaProgramID: in.BetaProgramID,
			ProductID:     in.ProductID,
			TesterID:      tester.ID,
			UserID:        caller.ID,
			Category:      in.Category,
			Title:         in.Title,
			Content:       in.Content,
			Rating:        in.Rating,
			IsCritical:    in.IsCritical,
			IsResolved:    false,
			Screenshots:   jsonList(in.Screenshots),
			DeviceInfo:    deviceInfo,
		}
		if err := tx.Create(feedback).Error; err != nil {
			return Internal("create feedback", err)
		}

		action, label := models.ActionSubmittedFeedback, "Feedback"
		if in.IsCritical {
			action, label = models.ActionCriticalBug, "Critical feedback"
		}
		entry := pointsEntry(caller.ID, in.BetaProgramID, action,
			fmt.Sprintf("%s submitted for %s", label, in.Category))
		if err := s.awarder.Award(tx, entry); err != nil {
			return passThrough(err, "award feedback points")
		}

		status := tester.Status
		if tester.CanTransition(models.TesterActive) {
			status = models.TesterActive
		}
		if err := tx.Model(&tester).Updates(map[string]interface{}{
			"status":   status,
			"progress": models.FeedbackProgress(tester.Progress),
		}).Error; err != nil {
			return Internal("update tester progress", err)
		}

		result.Feedback = feedback
		result.PointsEarned = entry.Points
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.points.Invalidate()
	utils.LogEvent("feedback_submitted", map[string]interface{}{
		"user_id":         caller.ID,
		"beta_program_id": in.BetaProgramID,
		"is_critical":     in.IsCritical,
		"points":          result.PointsEarned,
	})
	return result, nil
}

// List returns feedback, critical first and newest first within that.
func (s *FeedbackService) List(ctx context.Context, f FeedbackFilter) ([]FeedbackView, error) {
	q := s.db.WithContext(ctx).Table("beta_feedback AS bf").
		Select("bf.*, u.full_name, u.username, u.avatar_url").
		Joins("LEFT JOIN users u ON u.id = bf.user_id").
		Where("bf.deleted_at IS NULL")

	if f.BetaProgramID != 0 {
		q = q.Where("bf.beta_program_id = ?", f.BetaProgramID)
	}
	if f.ProductID != 0 {
		q = q.Where("bf.product_id = ?", f.ProductID)
	}
	if f.Category != "" {
		q = q.Where("bf.category = ?", f.Category)
	}
	if f.UserID != 0 {
		q = q.Where("bf.user_id = ?", f.UserID)
	}

	views := []FeedbackView{}
	if err := q.Order("bf.is_critical DESC, bf.created_at DESC, bf.id DESC").Scan(&views).Error; err != nil {
		return nil, Internal("list feedback", err)
	}
	return views, nil
}

// Update applies the fields of patch the caller's role allows: the program
// builder responds and resolves, the author edits content.
func (s *FeedbackService) Update(ctx context.Context, caller *models.User, id uint, patch FeedbackPatch) (*models.BetaFeedback, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}

	var feedback models.BetaFeedback
	err := mutateAtomic(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&feedback, id).Error; err != nil {
			return lookupErr(err, "Feedback not found", "load feedback")
		}

		var program models.BetaProgram
		if err := tx.Unscoped().First(&program, feedback.BetaProgramID).Error; err != nil {
			return lookupErr(err, "Beta program not found", "load beta program")
		}

		own := Ownership{BuilderID: program.BuilderID, AuthorID: feedback.UserID}
		asBuilder := CanMutate(caller, own, ActBuilderManage)
		asAuthor := CanMutate(caller, own, ActAuthorEdit)
		if !asBuilder && !asAuthor {
			return Forbidden("Not authorized to update this feedback")
		}

		cols, err := patch.columns(asBuilder, asAuthor, s.timestamp())
		if err != nil {
			return err
		}
		if err := tx.Model(&feedback).Updates(cols).Error; err != nil {
			return Internal("update feedback", err)
		}
		return tx.First(&feedback, id).Error
	})
	if err != nil {
		return nil, passThrough(err, "update feedback")
	}
	return &feedback, nil
}

// Delete removes feedback; only its author may. Points already earned stay
// in the ledger.
func (s *FeedbackService) Delete(ctx context.Context, caller *models.User, id uint) error {
	if caller == nil {
		return Unauthorized("Authentication required")
	}
	db := s.db.WithContext(ctx)

	var feedback models.BetaFeedback
	if err := db.First(&feedback, id).Error; err != nil {
		return lookupErr(err, "Feedback not found", "load feedback")
	}
	if !CanMutate(caller, Ownership{AuthorID: feedback.UserID}, ActAuthorEdit) {
		return Forbidden("Not authorized to delete this feedback")
	}
	if err := db.Delete(&feedback).Error; err != nil {
		return Internal("delete feedback", err)
	}
	s.points.Invalidate()
	return nil
}
