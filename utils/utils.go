package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// ErrorResponse writes the failure envelope. details is only set for
// client-caused errors; internal causes never reach the response.
func ErrorResponse(c *fiber.Ctx, status int, message string, details error) error {
	response := fiber.Map{
		"success": false,
		"error":   message,
	}
	if details != nil {
		response["details"] = details.Error()
	}
	return c.Status(status).JSON(response)
}

// SuccessResponse merges payload into the success envelope.
func SuccessResponse(payload fiber.Map) fiber.Map {
	response := fiber.Map{"success": true}
	for k, v := range payload {
		response[k] = v
	}
	return response
}

// ParseUint safely parses a string to uint
func ParseUint(s string) uint {
	i, _ := strconv.ParseUint(s, 10, 32)
	return uint(i)
}

// Pagination is echoed back on list endpoints.
type Pagination struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

// ClampLimit applies a default and an upper bound to a client supplied page size.
func ClampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}
