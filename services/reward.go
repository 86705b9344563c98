package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"discoverly/models"
	"discoverly/utils"
)

type IssueRewardInput struct {
	BetaProgramID uint                   `json:"beta_program_id" validate:"required"`
	TesterID      uint                   `json:"tester_id" validate:"required"`
	RewardType    string                 `json:"reward_type" validate:"required,max=50"`
	RewardDetails map[string]interface{} `json:"reward_details"`
	ExpiresAt     *time.Time             `json:"expires_at"`
}

// RewardService issues rewards to testers and lets them claim them.
// Expiry is lazy: a pending reward past expires_at becomes expired the next
// time it is read or claimed.
type RewardService struct {
	base
}

func (s *RewardService) Issue(ctx context.Context, caller *models.User, in IssueRewardInput) (*models.BetaReward, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}
	if !caller.IsBuilder() {
		return nil, Forbidden("Only builders can issue rewards")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	details, err := jsonValue(in.RewardDetails)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var program models.BetaProgram
	if err := db.First(&program, in.BetaProgramID).Error; err != nil {
		return nil, lookupErr(err, "Beta program not found", "load beta program")
	}
	if !CanMutate(caller, Ownership{BuilderID: program.BuilderID}, ActIssueReward) {
		return nil, Forbidden("Not authorized to issue rewards for this program")
	}

	var tester models.BetaTester
	if err := db.Where("id = ? AND beta_program_id = ?", in.TesterID, program.ID).First(&tester).Error; err != nil {
		return nil, lookupErr(err, "Tester not found", "load tester")
	}

	reward := &models.BetaReward{
		BetaProgramID: program.ID,
		TesterID:      tester.ID,
		UserID:        tester.UserID,
		RewardType:    in.RewardType,
		RewardDetails: details,
		Status:        models.RewardPending,
	}
	if in.ExpiresAt != nil {
		reward.ExpiresAt = utils.Pointer(in.ExpiresAt.UTC())
	}
	if err := db.Create(reward).Error; err != nil {
		return nil, Internal("create reward", err)
	}

	utils.LogEvent("reward_issued", map[string]interface{}{
		"reward_id":  reward.ID,
		"builder_id": caller.ID,
		"user_id":    reward.UserID,
	})

	var user models.User
	if err := db.First(&user, tester.UserID).Error; err == nil {
		data := map[string]interface{}{
			"Name":       user.DisplayName(),
			"Program":    program.Title,
			"RewardType": reward.RewardType,
		}
		if reward.ExpiresAt != nil {
			data["ExpiresAt"] = reward.ExpiresAt.Format("Jan 2, 2006")
		}
		s.notify(user.Email, "You earned a beta reward", utils.TemplateRewardIssued, data)
	}
	return reward, nil
}

// ListMine returns the caller's rewards, newest first, expiring overdue ones
// on the way.
func (s *RewardService) ListMine(ctx context.Context, caller *models.User) ([]models.BetaReward, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}
	db := s.db.WithContext(ctx)

	rewards := []models.BetaReward{}
	if err := db.Where("user_id = ?", caller.ID).Order("created_at DESC, id DESC").Find(&rewards).Error; err != nil {
		return nil, Internal("list rewards", err)
	}

	now := s.timestamp()
	for i := range rewards {
		if err := s.expireIfDue(db, &rewards[i], now); err != nil {
			return nil, err
		}
	}
	return rewards, nil
}

// Get returns a reward to its owner or to the program's builder.
func (s *RewardService) Get(ctx context.Context, caller *models.User, id uint) (*models.BetaReward, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}
	db := s.db.WithContext(ctx)

	var reward models.BetaReward
	if err := db.First(&reward, id).Error; err != nil {
		return nil, lookupErr(err, "Reward not found", "load reward")
	}

	if reward.UserID != caller.ID {
		var program models.BetaProgram
		if err := db.Unscoped().First(&program, reward.BetaProgramID).Error; err != nil {
			return nil, lookupErr(err, "Beta program not found", "load beta program")
		}
		if !CanMutate(caller, Ownership{BuilderID: program.BuilderID}, ActBuilderManage) {
			return nil, Forbidden("Not authorized to view this reward")
		}
	}

	if err := s.expireIfDue(db, &reward, s.timestamp()); err != nil {
		return nil, err
	}
	return &reward, nil
}

// Claim redeems a pending reward for its owner. The reward and the tester's
// reward_claimed flag change together.
func (s *RewardService) Claim(ctx context.Context, caller *models.User, id uint) (*models.BetaReward, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}

	var reward models.BetaReward
	expired := false
	err := mutateAtomic(ctx, s.db, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&reward, id).Error; err != nil {
			return lookupErr(err, "Reward not found", "load reward")
		}
		if reward.UserID != caller.ID {
			return Forbidden("Not authorized to claim this reward")
		}

		switch reward.Status {
		case models.RewardClaimed:
			return AlreadyClaimed("Reward already claimed")
		case models.RewardExpired:
			return Expired("Reward has expired")
		}

		now := s.timestamp()
		if reward.ExpireIfDue(now) {
			// the expiry must persist even though the claim fails
			expired = true
			if err := tx.Model(&reward).Update("status", models.RewardExpired).Error; err != nil {
				return Internal("expire reward", err)
			}
			return nil
		}

		reward.Status = models.RewardClaimed
		reward.ClaimedAt = &now
		if err := tx.Model(&reward).Updates(map[string]interface{}{
			"status":     reward.Status,
			"claimed_at": now,
		}).Error; err != nil {
			return Internal("claim reward", err)
		}
		if err := tx.Model(&models.BetaTester{}).Where("id = ?", reward.TesterID).Updates(map[string]interface{}{
			"reward_claimed":    true,
			"reward_claimed_at": now,
		}).Error; err != nil {
			return Internal("mark tester reward", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, Expired("Reward has expired")
	}

	utils.LogEvent("reward_claimed", map[string]interface{}{
		"reward_id": reward.ID,
		"user_id":   caller.ID,
	})
	return &reward, nil
}

func (s *RewardService) expireIfDue(db *gorm.DB, reward *models.BetaReward, now time.Time) error {
	if !reward.ExpireIfDue(now) {
		return nil
	}
	if err := db.Model(reward).Update("status", models.RewardExpired).Error; err != nil {
		return Internal("expire reward", err)
	}
	return nil
}
