package api

import "github.com/gofiber/fiber/v2"

func success(c *fiber.Ctx, msg string, data interface{}) error {
	return c.JSON(fiber.Map{"message": msg, "data": data})
}

func fail(c *fiber.Ctx, status int, msg string, err error) error {
	body := fiber.Map{"message": msg}
	if err != nil {
		body["error"] = err.Error()
	}
	return c.Status(status).JSON(body)
}
