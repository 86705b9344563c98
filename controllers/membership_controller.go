package controller

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"

	"discoverly/models"
	"discoverly/services"
	"discoverly/utils"
)

type MembershipController struct {
	Members *services.MembershipService
	Logger  *log.Logger
}

func NewMembershipController(svc *services.Services, logger *log.Logger) *MembershipController {
	return &MembershipController{
		Members: svc.Membership,
		Logger:  logger,
	}
}

// JoinProgram enrolls the caller, or files an application for approval-only programs
func (mc *MembershipController) JoinProgram(c *fiber.Ctx) error {
	var input services.JoinInput
	if err := parseBody(c, &input); err != nil {
		return handleServiceError(c, mc.Logger, err)
	}

	result, err := mc.Members.Join(c.UserContext(), currentUser(c), input)
	if err != nil {
		return handleServiceError(c, mc.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"tester":        result.Tester,
		"message":       result.Message,
		"points_earned": result.PointsEarned,
	}))
}

func (mc *MembershipController) MyParticipations(c *fiber.Ctx) error {
	participations, err := mc.Members.MyParticipations(c.UserContext(), currentUser(c))
	if err != nil {
		return handleServiceError(c, mc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"participations": participations}))
}

func (mc *MembershipController) ApproveTester(c *fiber.Ctx) error {
	return mc.transition(c, mc.Members.Approve, "Tester approved")
}

func (mc *MembershipController) DeclineTester(c *fiber.Ctx) error {
	return mc.transition(c, mc.Members.Decline, "Tester declined")
}

func (mc *MembershipController) CompleteTester(c *fiber.Ctx) error {
	return mc.transition(c, mc.Members.Complete, "Beta test marked as completed")
}

type testerTransition func(ctx context.Context, caller *models.User, testerID uint) (*models.BetaTester, error)

func (mc *MembershipController) transition(c *fiber.Ctx, apply testerTransition, message string) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, mc.Logger, err)
	}

	tester, err := apply(c.UserContext(), currentUser(c), id)
	if err != nil {
		return handleServiceError(c, mc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"tester":  tester,
		"message": message,
	}))
}
