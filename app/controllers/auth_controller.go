package controllers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/usercontext"
)

type registerRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=150"`
	Email       string `json:"email" validate:"required,email,min=5,max=200"`
	CompanyName string `json:"company_name" validate:"omitempty,max=200"`
	Role        string `json:"role" validate:"omitempty,oneof=user provider"`
}

// HandleRegister creates an account and issues its API key. The plaintext key
// is returned exactly once; only its hash is stored.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if err := validator.New().Struct(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid registration: "+err.Error())
	}

	role := req.Role
	if role == "" {
		role = models.ROLE_USER
	}

	repo := repository.GetGlobalRepositories().User
	if _, err := repo.GetByEmail(strings.ToLower(req.Email)); err == nil {
		return jsonError(c, fiber.StatusConflict, "conflict", "Email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Registration failed")
	}

	user := &models.User{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		CompanyName: strings.TrimSpace(req.CompanyName),
		Role:        role,
		Status:      models.STATUS_ACTIVE,
	}
	apiKey, err := user.IssueAPIKey()
	if err != nil {
		log.Errorf("[Auth] issue api key: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Registration failed")
	}
	if err := repo.Create(user); err != nil {
		log.Errorf("[Auth] create user: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Registration failed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":    user,
		"api_key": apiKey,
	})
}

// HandleGetAccount returns the authenticated account.
func HandleGetAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	user, err := repository.GetGlobalRepositories().User.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}
	return c.JSON(fiber.Map{"user": user, "is_provider": user.IsProviderAccount()})
}

// HandleRotateAPIKey issues a fresh API key, invalidating the old one.
func HandleRotateAPIKey(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repo := repository.GetGlobalRepositories().User
	user, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	apiKey, err := user.IssueAPIKey()
	if err != nil {
		log.Errorf("[Auth] rotate api key for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Key rotation failed")
	}
	if err := repo.Update(user); err != nil {
		log.Errorf("[Auth] persist rotated key for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Key rotation failed")
	}

	return c.JSON(fiber.Map{"api_key": apiKey, "api_key_prefix": user.APIKeyPrefix})
}
