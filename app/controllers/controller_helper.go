package controllers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
)

var validate = validator.New()

// parseIDParam reads a positive numeric route parameter.
func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	raw := strings.TrimSpace(c.Params(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return uint(id), nil
}

// parseRequest binds a form or JSON body into req and validates it.
func parseRequest(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return err
	}
	return validate.Struct(req)
}

// firstInvalidField returns the lower-cased name of the first field that
// failed validation, or "".
func firstInvalidField(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return strings.ToLower(verrs[0].Field())
	}
	return ""
}

func invalidFieldMessage(err error) string {
	if field := firstInvalidField(err); field != "" {
		return "Please check the " + field + " field."
	}
	return "Invalid form input."
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

// redirectWithError sets an error flash and answers 303 so a reload of the
// target never repeats the POST.
func redirectWithError(c *fiber.Ctx, path, message string) error {
	flash.WithError(c, fiber.Map{"type": "error", "message": message})
	return c.Redirect(path, fiber.StatusSeeOther)
}

func redirectWithSuccess(c *fiber.Ctx, path, message string) error {
	flash.WithSuccess(c, fiber.Map{"type": "success", "message": message})
	return c.Redirect(path, fiber.StatusSeeOther)
}

// csrfToken returns the token set by the csrf middleware, if any.
func csrfToken(c *fiber.Ctx) string {
	if token, ok := c.Locals("csrf").(string); ok {
		return token
	}
	return ""
}

// GetClientIP determines the client IP considering Cloudflare and proxies.
func GetClientIP(c *fiber.Ctx) string {
	if cfIP := strings.TrimSpace(c.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return c.IP()
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil || v < 0 {
		return def
	}
	return v
}
