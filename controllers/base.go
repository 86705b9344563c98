package controller

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"discoverly/middleware"
	"discoverly/models"
	"discoverly/services"
	"discoverly/utils"
)

var kindStatus = map[services.Kind]int{
	services.KindUnauthorized:     fiber.StatusUnauthorized,
	services.KindForbidden:        fiber.StatusForbidden,
	services.KindNotFound:         fiber.StatusNotFound,
	services.KindInvalidInput:     fiber.StatusBadRequest,
	services.KindConflict:         fiber.StatusConflict,
	services.KindExpired:          fiber.StatusBadRequest,
	services.KindAlreadyClaimed:   fiber.StatusBadRequest,
	services.KindCapacityExceeded: fiber.StatusBadRequest,
}

// handleServiceError writes the failure envelope for err. Internal causes
// are logged and reported, never returned to the client.
func handleServiceError(c *fiber.Ctx, logger *log.Logger, err error) error {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		if status, ok := kindStatus[svcErr.Kind]; ok {
			return utils.ErrorResponse(c, status, svcErr.Message, nil)
		}
	}

	if logger != nil {
		logger.Printf("%s %s failed: %v", c.Method(), c.Path(), err)
	}
	utils.LogError("request_failed", err, map[string]interface{}{
		"method":     c.Method(),
		"path":       c.Path(),
		"request_id": c.Locals("requestid"),
	})
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", nil)
}

// ErrorHandler is the app-wide fallback for errors no handler wrote a
// response for, including recovered panics.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return utils.ErrorResponse(c, fe.Code, fe.Message, nil)
	}
	return handleServiceError(c, nil, err)
}

func NotFoundHandler(c *fiber.Ctx) error {
	return utils.ErrorResponse(c, fiber.StatusNotFound, "Route not found", nil)
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, services.InvalidInput("Invalid " + name)
	}
	return uint(id), nil
}

func queryUint(c *fiber.Ctx, key string) (uint, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, services.InvalidInput("Invalid " + key)
	}
	return uint(v), nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return &services.Error{Kind: services.KindInvalidInput, Message: "Invalid request body", Err: err}
	}
	return nil
}

func currentUser(c *fiber.Ctx) *models.User {
	return middleware.CurrentUser(c)
}
