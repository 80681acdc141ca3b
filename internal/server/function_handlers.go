package server

import (
	"errors"

	"github.com/aslbekqoziboyev/aiverselabs/internal/functions"

	"github.com/gofiber/fiber/v2"
)

const (
	functionsPrefix      = "/functions/v1"
	functionAllowHeaders = "authorization, x-client-info, apikey, content-type"
)

func setFunctionCORS(c *fiber.Ctx) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowHeaders, functionAllowHeaders)
}

// FunctionPreflight answers CORS preflight for any function name.
func (s *Server) FunctionPreflight(c *fiber.Ctx) error {
	setFunctionCORS(c)
	return c.SendStatus(fiber.StatusOK)
}

// InvokeFunction runs the function named in :name with the raw JSON body.
// Every failure is reported as 500 {error}; unknown names are 404.
func (s *Server) InvokeFunction(c *fiber.Ctx) error {
	setFunctionCORS(c)

	name := c.Params("name")
	result, err := s.functions.Invoke(c.UserContext(), name, c.Body())
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, functions.ErrUnknownFunction) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}
