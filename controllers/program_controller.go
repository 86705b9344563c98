package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"discoverly/services"
	"discoverly/utils"
)

type ProgramController struct {
	Programs *services.ProgramService
	Members  *services.MembershipService
	Logger   *log.Logger
}

func NewProgramController(svc *services.Services, logger *log.Logger) *ProgramController {
	return &ProgramController{
		Programs: svc.Programs,
		Members:  svc.Membership,
		Logger:   logger,
	}
}

// ListPrograms returns programs with tester and feedback counts
func (pc *ProgramController) ListPrograms(c *fiber.Ctx) error {
	page, err := pc.Programs.List(c.UserContext(), services.ProgramFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
		Limit:    c.QueryInt("limit"),
		Offset:   c.QueryInt("offset"),
	})
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"programs":   page.Programs,
		"pagination": page.Pagination,
	}))
}

// MyPrograms is the builder dashboard: the caller's programs in any status
func (pc *ProgramController) MyPrograms(c *fiber.Ctx) error {
	programs, err := pc.Programs.ListMine(c.UserContext(), currentUser(c))
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"programs": programs}))
}

func (pc *ProgramController) CreateProgram(c *fiber.Ctx) error {
	var input services.CreateProgramInput
	if err := parseBody(c, &input); err != nil {
		return handleServiceError(c, pc.Logger, err)
	}

	program, err := pc.Programs.Create(c.UserContext(), currentUser(c), input)
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{"program": program}))
}

func (pc *ProgramController) GetProgram(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}

	program, err := pc.Programs.Get(c.UserContext(), id)
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"program": program}))
}

func (pc *ProgramController) UpdateProgram(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}
	var patch services.ProgramPatch
	if err := parseBody(c, &patch); err != nil {
		return handleServiceError(c, pc.Logger, err)
	}

	program, err := pc.Programs.Update(c.UserContext(), currentUser(c), id, patch)
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"program": program}))
}

func (pc *ProgramController) DeleteProgram(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}
	if err := pc.Programs.Delete(c.UserContext(), currentUser(c), id); err != nil {
		return handleServiceError(c, pc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Beta program deleted"}))
}

// GetTesters lists a program's members for its builder
func (pc *ProgramController) GetTesters(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}

	testers, err := pc.Members.ListTesters(c.UserContext(), currentUser(c), id, c.Query("status"))
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"testers": testers}))
}

func (pc *ProgramController) GetAnalytics(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}

	analytics, err := pc.Programs.Analytics(c.UserContext(), currentUser(c), id)
	if err != nil {
		return handleServiceError(c, pc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"analytics": analytics}))
}
