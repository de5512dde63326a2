package handlers

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/fivlabs/fivapp-backend/internal/middleware"
	"github.com/fivlabs/fivapp-backend/internal/models"
	"github.com/fivlabs/fivapp-backend/internal/storage"
)

// AuthHandler serves login and user management for the dashboard.
type AuthHandler struct {
	store     storage.Store
	jwtSecret string
	log       *logrus.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(store storage.Store, jwtSecret string, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret, log: log}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// Login authenticates an agent and issues a session token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := h.store.GetUserByEmail(req.Email)
	if err != nil || !middleware.CheckPasswordHash(req.Password, user.PasswordHash) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}

	token, err := middleware.GenerateToken(h.jwtSecret, user.ID, user.Email, user.Role)
	if err != nil {
		h.log.Errorf("❌ Failed to sign token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create session"})
	}

	user.IsOnline = true
	if err := h.store.UpdateUser(user); err != nil {
		h.log.Errorf("❌ Failed to flag user online: %v", err)
	}

	h.log.Infof("🔑 User logged in: %s", user.Email)
	return c.JSON(fiber.Map{"token": token, "user": user})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	user, err := h.store.GetUser(userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	return c.JSON(user)
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r createUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&r.Role, validation.In(models.RoleAdmin, models.RoleAgent)),
	)
}

// CreateUser registers a new agent.
func (h *AuthHandler) CreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	hash, err := middleware.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	user, err := h.store.CreateUser(&models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	})
	if err != nil {
		if err == storage.ErrDuplicate {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already registered"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create user"})
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// ListUsers returns all registered agents.
func (h *AuthHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.store.GetAllUsers()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list users"})
	}
	return c.JSON(users)
}

type createQueueRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r createQueueRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
	)
}

// CreateQueue registers a routing queue.
func (h *AuthHandler) CreateQueue(c *fiber.Ctx) error {
	var req createQueueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	queue, err := h.store.CreateQueue(&models.Queue{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		if err == storage.ErrDuplicate {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Queue already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create queue"})
	}

	return c.Status(fiber.StatusCreated).JSON(queue)
}

// ListQueues returns all routing queues.
func (h *AuthHandler) ListQueues(c *fiber.Ctx) error {
	queues, err := h.store.GetAllQueues()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list queues"})
	}
	return c.JSON(queues)
}
