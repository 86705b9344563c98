package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"discoverly/services"
	"discoverly/utils"
)

type RewardController struct {
	Rewards *services.RewardService
	Logger  *log.Logger
}

func NewRewardController(svc *services.Services, logger *log.Logger) *RewardController {
	return &RewardController{
		Rewards: svc.Rewards,
		Logger:  logger,
	}
}

func (rc *RewardController) MyRewards(c *fiber.Ctx) error {
	rewards, err := rc.Rewards.ListMine(c.UserContext(), currentUser(c))
	if err != nil {
		return handleServiceError(c, rc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"rewards": rewards}))
}

func (rc *RewardController) IssueReward(c *fiber.Ctx) error {
	var input services.IssueRewardInput
	if err := parseBody(c, &input); err != nil {
		return handleServiceError(c, rc.Logger, err)
	}

	reward, err := rc.Rewards.Issue(c.UserContext(), currentUser(c), input)
	if err != nil {
		return handleServiceError(c, rc.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{"reward": reward}))
}

func (rc *RewardController) GetReward(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, rc.Logger, err)
	}

	reward, err := rc.Rewards.Get(c.UserContext(), currentUser(c), id)
	if err != nil {
		return handleServiceError(c, rc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"reward": reward}))
}

// ClaimReward redeems a pending reward; expired ones fail with 400
func (rc *RewardController) ClaimReward(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, rc.Logger, err)
	}

	reward, err := rc.Rewards.Claim(c.UserContext(), currentUser(c), id)
	if err != nil {
		return handleServiceError(c, rc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"reward":  reward,
		"message": "Reward claimed",
	}))
}
