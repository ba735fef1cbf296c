package controller

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"

	"questlog_backend/internal/ledger"
	"questlog_backend/internal/model"
	"questlog_backend/internal/oauth"
	"questlog_backend/pkg/utils/jwt"
)

type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"display_name" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthController struct {
	store     *ledger.Store
	providers map[string]oauth.Provider
}

func NewAuthController(store *ledger.Store, providers map[string]oauth.Provider) *AuthController {
	return &AuthController{store: store, providers: providers}
}

// generateUsername makes a URL-friendly unique username from a display name.
func (a *AuthController) generateUsername(displayName string) string {
	username := slug.Make(displayName)
	if username == "" {
		username = "player"
	}
	if existing, _ := a.store.UserByUsername(username); existing == nil {
		return username
	}
	return username + "-" + uuid.NewString()[:8]
}

func (a *AuthController) Register(c *fiber.Ctx) error {
	input := new(RegisterInput)
	if err := c.BodyParser(input); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid input")
	}

	existing, err := a.store.UserByEmail(input.Email)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Could not check email")
	}
	if existing != nil {
		return respondError(c, fiber.StatusBadRequest, "Email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Could not hash password")
	}

	user := model.User{
		Email:       input.Email,
		Password:    string(hashedPassword),
		Username:    a.generateUsername(input.DisplayName),
		DisplayName: input.DisplayName,
	}

	if err := a.store.CreateUser(&user); err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Could not create user")
	}

	token, err := jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Could not generate token")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"token": token,
			"user":  user.GetPublicProfile(),
		},
	})
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	input := new(LoginInput)
	if err := c.BodyParser(input); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid input")
	}

	user, err := a.store.UserByEmail(input.Email)
	if err != nil || user == nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if user.Password == "" {
		// OAuth-only account
		return respondError(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Could not generate token")
	}

	return respondOK(c, fiber.Map{
		"token": token,
		"user":  user.GetPublicProfile(),
	})
}

func (a *AuthController) GetMe(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	user, err := a.store.UserByID(claims.UserID)
	if err != nil {
		return respondError(c, fiber.StatusNotFound, "User not found")
	}
	return respondOK(c, user.GetPublicProfile())
}

// OAuthRedirect sends the browser to the provider consent page.
func (a *AuthController) OAuthRedirect(c *fiber.Ctx) error {
	provider, ok := a.providers[c.Params("provider")]
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Unknown OAuth provider")
	}
	return c.Redirect(provider.AuthCodeURL(uuid.NewString()), fiber.StatusFound)
}

// OAuthCallback exchanges the code and signs the user in, creating the
// account on first login.
func (a *AuthController) OAuthCallback(c *fiber.Ctx) error {
	provider, ok := a.providers[c.Params("provider")]
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Unknown OAuth provider")
	}

	code := c.Query("code")
	if code == "" {
		return respondError(c, fiber.StatusBadRequest, "Missing authorization code")
	}

	identity, err := provider.Exchange(c.Context(), code)
	if err != nil {
		log.Printf("OAuth exchange with %s failed: %v", provider.Name(), err)
		return respondError(c, fiber.StatusUnauthorized, "OAuth login failed")
	}
	if identity.Email == "" {
		return respondError(c, fiber.StatusUnauthorized, "OAuth provider returned no email")
	}

	user, err := a.store.UserByEmail(strings.ToLower(identity.Email))
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Could not look up user")
	}
	if user == nil {
		user = &model.User{
			Email:         strings.ToLower(identity.Email),
			Username:      a.generateUsername(identity.Name),
			DisplayName:   identity.Name,
			OAuthProvider: provider.Name(),
			OAuthSubject:  identity.ID,
		}
		if err := a.store.CreateUser(user); err != nil {
			return respondError(c, fiber.StatusInternalServerError, "Could not create user")
		}
	}

	token, err := jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Could not generate token")
	}

	return respondOK(c, fiber.Map{
		"token": token,
		"user":  user.GetPublicProfile(),
	})
}
