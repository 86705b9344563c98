package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"discoverly/services"
	"discoverly/utils"
)

type PointsController struct {
	Points *services.PointsService
	Logger *log.Logger
}

func NewPointsController(svc *services.Services, logger *log.Logger) *PointsController {
	return &PointsController{
		Points: svc.Points,
		Logger: logger,
	}
}

func (pc *PointsController) Leaderboard(c *fiber.Ctx) error {
	page, err := pc.Points.Leaderboard(c.UserContext(), c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"leaderboard": page.Entries,
		"pagination":  page.Pagination,
	}))
}

// MyStats returns the caller's tester statistics and rank
func (pc *PointsController) MyStats(c *fiber.Ctx) error {
	stats, err := pc.Points.Stats(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"stats": stats}))
}
