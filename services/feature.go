package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"discoverly/models"
	"discoverly/utils"
)

const (
	VoteAdded   = "added"
	VoteChanged = "changed"
	VoteRemoved = "removed"
)

const (
	SortVotes  = "votes"
	SortRecent = "recent"
	SortStatus = "status"
)

type CreateFeatureInput struct {
	BetaProgramID uint   `json:"beta_program_id" validate:"required"`
	ProductID     uint   `json:"product_id" validate:"required"`
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description" validate:"required"`
	Category      string `json:"category" validate:"max=50"`
	Priority      string `json:"priority" validate:"omitempty,oneof=low medium high critical"`
}

type FeatureFilter struct {
	BetaProgramID uint
	ProductID     uint
	Status        string
	Sort          string
	// ViewerID, when set, fills UserVote on each result.
	ViewerID uint
}

type FeatureView struct {
	models.FeatureRequest
	UserVote *string `json:"user_vote"`
}

type VoteResult struct {
	Vote         *string `json:"vote"`
	Action       string  `json:"action"`
	Message      string  `json:"message"`
	PointsEarned int     `json:"points_earned"`
	Upvotes      int     `json:"upvotes"`
	Downvotes    int     `json:"downvotes"`
	Score        int     `json:"score"`
}

// FeatureService is the feature voting ledger.
type FeatureService struct {
	base
}

func (s *FeatureService) Create(ctx context.Context, caller *models.User, in CreateFeatureInput) (*models.FeatureRequest, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var program models.BetaProgram
	if err := db.First(&program, in.BetaProgramID).Error; err != nil {
		return nil, lookupErr(err, "Beta program not found", "load beta program")
	}
	if program.ProductID != in.ProductID {
		return nil, InvalidInput("product_id does not match the beta program")
	}

	feature := &models.FeatureRequest{
		BetaProgramID: program.ID,
		ProductID:     program.ProductID,
		UserID:        caller.ID,
		Title:         in.Title,
		Description:   in.Description,
		Category:      in.Category,
		Priority:      in.Priority,
		Status:        models.FeatureProposed,
	}
	if feature.Category == "" {
		feature.Category = models.DefaultFeatureCategory
	}
	if feature.Priority == "" {
		feature.Priority = models.PriorityMedium
	}

	if err := db.Create(feature).Error; err != nil {
		return nil, Internal("create feature request", err)
	}
	return feature, nil
}

func (s *FeatureService) List(ctx context.Context, f FeatureFilter) ([]FeatureView, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.FeatureRequest{})

	if f.BetaProgramID != 0 {
		q = q.Where("beta_program_id = ?", f.BetaProgramID)
	}
	if f.ProductID != 0 {
		q = q.Where("product_id = ?", f.ProductID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	switch f.Sort {
	case SortRecent:
		q = q.Order("created_at DESC")
	case SortStatus:
		q = q.Order("CASE status WHEN 'in_progress' THEN 1 WHEN 'planned' THEN 2 WHEN 'proposed' THEN 3 " +
			"WHEN 'shipped' THEN 4 WHEN 'declined' THEN 5 ELSE 6 END").
			Order("(upvotes - downvotes) DESC")
	default:
		q = q.Order("(upvotes - downvotes) DESC").Order("created_at DESC")
	}

	var features []models.FeatureRequest
	if err := q.Order("id DESC").Find(&features).Error; err != nil {
		return nil, Internal("list feature requests", err)
	}

	votes := map[uint]string{}
	if f.ViewerID != 0 && len(features) > 0 {
		ids := make([]uint, len(features))
		for i, feature := range features {
			ids[i] = feature.ID
		}
		var mine []models.FeatureVote
		if err := db.Where("user_id = ? AND feature_request_id IN ?", f.ViewerID, ids).Find(&mine).Error; err != nil {
			return nil, Internal("load viewer votes", err)
		}
		for _, v := range mine {
			votes[v.FeatureRequestID] = v.VoteType
		}
	}

	views := make([]FeatureView, len(features))
	for i, feature := range features {
		views[i] = FeatureView{FeatureRequest: feature}
		if vt, ok := votes[feature.ID]; ok {
			views[i].UserVote = utils.Pointer(vt)
		}
	}
	return views, nil
}

// Vote casts, toggles off or flips the caller's vote on a feature.
// Counters are recomputed from vote rows inside the same transaction.
// Points for a new vote are awarded after commit on a best-effort basis.
func (s *FeatureService) Vote(ctx context.Context, caller *models.User, featureID uint, voteType string) (*VoteResult, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}
	if !models.ValidVoteType(voteType) {
		return nil, InvalidInput("vote_type must be upvote or downvote")
	}

	var feature models.FeatureRequest
	result := &VoteResult{}

	primary := func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&feature, featureID).Error; err != nil {
			return lookupErr(err, "Feature request not found", "load feature request")
		}

		var existing models.FeatureVote
		err := tx.Where("feature_request_id = ? AND user_id = ?", feature.ID, caller.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := &models.FeatureVote{
				FeatureRequestID: feature.ID,
				UserID:           caller.ID,
				VoteType:         voteType,
			}
			if err := tx.Create(vote).Error; err != nil {
				if isUniqueViolation(err) {
					return Conflict("Vote already recorded")
				}
				return Internal("create vote", err)
			}
			result.Action, result.Message = VoteAdded, "Vote recorded"
			result.Vote = utils.Pointer(voteType)
		case err != nil:
			return Internal("load vote", err)
		case existing.VoteType == voteType:
			if err := tx.Delete(&existing).Error; err != nil {
				return Internal("delete vote", err)
			}
			result.Action, result.Message = VoteRemoved, "Vote removed"
		default:
			if err := tx.Model(&existing).Update("vote_type", voteType).Error; err != nil {
				return Internal("update vote", err)
			}
			result.Action, result.Message = VoteChanged, "Vote updated"
			result.Vote = utils.Pointer(voteType)
		}

		return recountVotes(tx, &feature)
	}

	secondary := func(db *gorm.DB) error {
		if result.Action != VoteAdded {
			return nil
		}
		entry := pointsEntry(caller.ID, feature.BetaProgramID, models.ActionFeatureVote,
			fmt.Sprintf("Voted on feature: %s", feature.Title))
		if err := s.awarder.Award(db, entry); err != nil {
			return err
		}
		result.PointsEarned = entry.Points
		s.points.Invalidate()
		return nil
	}

	onErr := func(err error) {
		utils.LogError("vote_points_failed", err, map[string]interface{}{
			"user_id":            caller.ID,
			"feature_request_id": featureID,
		})
	}

	if err := mutateThenBestEffort(ctx, s.db, primary, secondary, onErr); err != nil {
		return nil, err
	}

	result.Upvotes = feature.Upvotes
	result.Downvotes = feature.Downvotes
	result.Score = feature.Upvotes - feature.Downvotes

	utils.LogEvent("vote_cast", map[string]interface{}{
		"user_id":            caller.ID,
		"feature_request_id": featureID,
		"action":             result.Action,
	})
	return result, nil
}

// recountVotes derives the feature's counters from its vote rows so the
// score always equals count(upvote) - count(downvote).
func recountVotes(tx *gorm.DB, feature *models.FeatureRequest) error {
	var up, down int64
	if err := tx.Model(&models.FeatureVote{}).
		Where("feature_request_id = ? AND vote_type = ?", feature.ID, models.VoteUp).
		Count(&up).Error; err != nil {
		return Internal("count upvotes", err)
	}
	if err := tx.Model(&models.FeatureVote{}).
		Where("feature_request_id = ? AND vote_type = ?", feature.ID, models.VoteDown).
		Count(&down).Error; err != nil {
		return Internal("count downvotes", err)
	}

	if err := tx.Model(&models.FeatureRequest{}).
		Where("id = ?", feature.ID).
		Updates(map[string]interface{}{"upvotes": up, "downvotes": down}).Error; err != nil {
		return Internal("update vote counters", err)
	}
	feature.Upvotes, feature.Downvotes = int(up), int(down)
	feature.Score = feature.Upvotes - feature.Downvotes
	return nil
}

// MyVote returns the caller's current vote type on a feature, or nil.
func (s *FeatureService) MyVote(ctx context.Context, caller *models.User, featureID uint) (*string, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.FeatureRequest{}).Where("id = ?", featureID).Count(&count).Error; err != nil {
		return nil, Internal("load feature request", err)
	}
	if count == 0 {
		return nil, NotFound("Feature request not found")
	}

	var vote models.FeatureVote
	err := db.Where("feature_request_id = ? AND user_id = ?", featureID, caller.ID).First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, Internal("load vote", err)
	}
	return &vote.VoteType, nil
}

// Update lets the program builder triage a feature and its creator edit it.
func (s *FeatureService) Update(ctx context.Context, caller *models.User, id uint, patch FeaturePatch) (*models.FeatureRequest, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}

	var feature models.FeatureRequest
	err := mutateAtomic(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&feature, id).Error; err != nil {
			return lookupErr(err, "Feature request not found", "load feature request")
		}

		var program models.BetaProgram
		if err := tx.Unscoped().First(&program, feature.BetaProgramID).Error; err != nil {
			return lookupErr(err, "Beta program not found", "load beta program")
		}

		own := Ownership{BuilderID: program.BuilderID, AuthorID: feature.UserID}
		asBuilder := CanMutate(caller, own, ActBuilderManage)
		asCreator := CanMutate(caller, own, ActAuthorEdit)
		if !asBuilder && !asCreator {
			return Forbidden("Not authorized to update this feature request")
		}

		cols, err := patch.columns(asBuilder, asCreator)
		if err != nil {
			return err
		}
		if err := tx.Model(&feature).Updates(cols).Error; err != nil {
			return Internal("update feature request", err)
		}
		return tx.First(&feature, id).Error
	})
	if err != nil {
		return nil, passThrough(err, "update feature request")
	}
	return &feature, nil
}

// Delete removes a feature request and its votes; only the creator may.
func (s *FeatureService) Delete(ctx context.Context, caller *models.User, id uint) error {
	if caller == nil {
		return Unauthorized("Authentication required")
	}

	return mutateAtomic(ctx, s.db, func(tx *gorm.DB) error {
		var feature models.FeatureRequest
		if err := tx.First(&feature, id).Error; err != nil {
			return lookupErr(err, "Feature request not found", "load feature request")
		}
		if !CanMutate(caller, Ownership{AuthorID: feature.UserID}, ActAuthorEdit) {
			return Forbidden("Not authorized to delete this feature request")
		}

		if err := tx.Where("feature_request_id = ?", feature.ID).Delete(&models.FeatureVote{}).Error; err != nil {
			return Internal("delete votes", err)
		}
		if err := tx.Delete(&feature).Error; err != nil {
			return Internal("delete feature request", err)
		}
		return nil
	})
}
