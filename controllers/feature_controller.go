package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"discoverly/services"
	"discoverly/utils"
)

type FeatureController struct {
	Features *services.FeatureService
	Logger   *log.Logger
}

func NewFeatureController(svc *services.Services, logger *log.Logger) *FeatureController {
	return &FeatureController{
		Features: svc.Features,
		Logger:   logger,
	}
}

// ListFeatures includes the caller's own vote when a token was sent
func (fc *FeatureController) ListFeatures(c *fiber.Ctx) error {
	programID, err := queryUint(c, "beta_program_id")
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	productID, err := queryUint(c, "product_id")
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}

	filter := services.FeatureFilter{
		BetaProgramID: programID,
		ProductID:     productID,
		Status:        c.Query("status"),
		Sort:          c.Query("sort", services.SortVotes),
	}
	if user := currentUser(c); user != nil {
		filter.ViewerID = user.ID
	}

	features, err := fc.Features.List(c.UserContext(), filter)
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"features": features}))
}

func (fc *FeatureController) CreateFeature(c *fiber.Ctx) error {
	var input services.CreateFeatureInput
	if err := parseBody(c, &input); err != nil {
		return handleServiceError(c, fc.Logger, err)
	}

	feature, err := fc.Features.Create(c.UserContext(), currentUser(c), input)
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{"feature": feature}))
}

func (fc *FeatureController) UpdateFeature(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	var patch services.FeaturePatch
	if err := parseBody(c, &patch); err != nil {
		return handleServiceError(c, fc.Logger, err)
	}

	feature, err := fc.Features.Update(c.UserContext(), currentUser(c), id, patch)
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"feature": feature}))
}

func (fc *FeatureController) DeleteFeature(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	if err := fc.Features.Delete(c.UserContext(), currentUser(c), id); err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Feature request deleted"}))
}

// Vote casts, toggles off or flips the caller's vote
func (fc *FeatureController) Vote(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	var input struct {
		VoteType string `json:"vote_type"`
	}
	if err := parseBody(c, &input); err != nil {
		return handleServiceError(c, fc.Logger, err)
	}

	result, err := fc.Features.Vote(c.UserContext(), currentUser(c), id, input.VoteType)
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"vote":          result.Vote,
		"action":        result.Action,
		"message":       result.Message,
		"points_earned": result.PointsEarned,
		"upvotes":       result.Upvotes,
		"downvotes":     result.Downvotes,
		"score":         result.Score,
	}))
}

func (fc *FeatureController) MyVote(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}

	vote, err := fc.Features.MyVote(c.UserContext(), currentUser(c), id)
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"vote": vote}))
}
