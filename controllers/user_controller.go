package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"discoverly/services"
	"discoverly/utils"
)

type UserController struct {
	Users    *services.UserService
	Products *services.ProductService
	Members  *services.MembershipService
	Logger   *log.Logger
}

func NewUserController(svc *services.Services, logger *log.Logger) *UserController {
	return &UserController{
		Users:    svc.Users,
		Products: svc.Products,
		Members:  svc.Membership,
		Logger:   logger,
	}
}

// GetCurrentUser returns the authenticated user's profile
func (uc *UserController) GetCurrentUser(c *fiber.Ctx) error {
	user, err := uc.Users.Me(c.UserContext(), currentUser(c))
	if err != nil {
		return handleServiceError(c, uc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"user": user}))
}

func (uc *UserController) UpdateRole(c *fiber.Ctx) error {
	var input struct {
		Role string `json:"role"`
	}
	if err := parseBody(c, &input); err != nil {
		return handleServiceError(c, uc.Logger, err)
	}

	user, err := uc.Users.UpdateRole(c.UserContext(), currentUser(c), input.Role)
	if err != nil {
		return handleServiceError(c, uc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"user": user}))
}

// CreateProduct registers a product so it can host beta programs
func (uc *UserController) CreateProduct(c *fiber.Ctx) error {
	var input services.CreateProductInput
	if err := parseBody(c, &input); err != nil {
		return handleServiceError(c, uc.Logger, err)
	}

	product, err := uc.Products.Create(c.UserContext(), currentUser(c), input)
	if err != nil {
		return handleServiceError(c, uc.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{"product": product}))
}

// SignupForProductBeta is the one-click signup from a product page
func (uc *UserController) SignupForProductBeta(c *fiber.Ctx) error {
	productID, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, uc.Logger, err)
	}

	tester, err := uc.Members.SignupForProduct(c.UserContext(), currentUser(c), productID)
	if err != nil {
		return handleServiceError(c, uc.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"tester":  tester,
		"message": "Signed up for beta testing",
	}))
}

// GetProductTesters lists every signup for a product, for its maker
func (uc *UserController) GetProductTesters(c *fiber.Ctx) error {
	productID, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, uc.Logger, err)
	}

	testers, err := uc.Members.ListProductTesters(c.UserContext(), currentUser(c), productID, c.Query("status"))
	if err != nil {
		return handleServiceError(c, uc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"testers": testers}))
}
