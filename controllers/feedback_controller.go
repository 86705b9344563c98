package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"discoverly/services"
	"discoverly/utils"
)

type FeedbackController struct {
	Feedback *services.FeedbackService
	Logger   *log.Logger
}

func NewFeedbackController(svc *services.Services, logger *log.Logger) *FeedbackController {
	return &FeedbackController{
		Feedback: svc.Feedback,
		Logger:   logger,
	}
}

func (fc *FeedbackController) ListFeedback(c *fiber.Ctx) error {
	programID, err := queryUint(c, "beta_program_id")
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	productID, err := queryUint(c, "product_id")
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	userID, err := queryUint(c, "user_id")
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}

	feedback, err := fc.Feedback.List(c.UserContext(), services.FeedbackFilter{
		BetaProgramID: programID,
		ProductID:     productID,
		Category:      c.Query("category"),
		UserID:        userID,
	})
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"feedback": feedback}))
}

// SubmitFeedback records feedback and awards points in one step
func (fc *FeedbackController) SubmitFeedback(c *fiber.Ctx) error {
	var input services.SubmitFeedbackInput
	if err := parseBody(c, &input); err != nil {
		return handleServiceError(c, fc.Logger, err)
	}

	result, err := fc.Feedback.Submit(c.UserContext(), currentUser(c), input)
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"feedback":      result.Feedback,
		"points_earned": result.PointsEarned,
		"message":       "Feedback submitted",
	}))
}

func (fc *FeedbackController) UpdateFeedback(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	var patch services.FeedbackPatch
	if err := parseBody(c, &patch); err != nil {
		return handleServiceError(c, fc.Logger, err)
	}

	feedback, err := fc.Feedback.Update(c.UserContext(), currentUser(c), id, patch)
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"feedback": feedback}))
}

func (fc *FeedbackController) DeleteFeedback(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	if err := fc.Feedback.Delete(c.UserContext(), currentUser(c), id); err != nil {
		return handleServiceError(c, fc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Feedback deleted"}))
}
