package controllers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// parseScopeQuery reads the optional category/region plan scope from the
// query string. Both "category" and "category_id" are accepted.
func parseScopeQuery(c *fiber.Ctx) (*uint, *string) {
	var categoryID *uint
	raw := strings.TrimSpace(c.Query("category"))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("category_id"))
	}
	if raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil && id > 0 {
			v := uint(id)
			categoryID = &v
		}
	}
	var region *string
	if raw := strings.TrimSpace(c.Query("region")); raw != "" {
		region = &raw
	}
	return categoryID, region
}

func parsePagination(c *fiber.Ctx, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}
	return limit, offset
}

// parseTimeQuery reads an optional timestamp query parameter, accepting
// RFC 3339 or a plain date.
func parseTimeQuery(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("invalid %s, expected RFC 3339 or YYYY-MM-DD", name)
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}
