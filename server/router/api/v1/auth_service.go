package v1

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/apsa-ai/nexus/server/auth"
	"github.com/apsa-ai/nexus/store"
)

type signupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Signup creates a user account and returns an access token.
func (s *APIV1Service) Signup(c echo.Context) error {
	ctx := c.Request().Context()

	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 6 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Username and a password of at least 6 characters are required"})
	}

	existing, err := s.Store.GetUser(ctx, &store.FindUser{Username: &req.Username})
	if err != nil {
		slog.Error("failed to check existing user", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create account"})
	}
	if existing != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Username already taken"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create account"})
	}

	user, err := s.Store.CreateUser(ctx, &store.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		CreatedTs:    time.Now().Unix(),
	})
	if err != nil {
		slog.Error("failed to create user", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create account"})
	}

	token, err := auth.GenerateAccessToken(user.Username, user.ID, time.Now().Add(auth.AccessTokenDuration), []byte(s.Profile.JWTSecret))
	if err != nil {
		slog.Error("failed to issue access token", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create account"})
	}

	return c.JSON(http.StatusCreated, authResponse{Token: token, Username: user.Username})
}

// Login verifies credentials and returns an access token.
func (s *APIV1Service) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	user, err := s.Store.GetUser(ctx, &store.FindUser{Username: &req.Username})
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to log in"})
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid username or password"})
	}

	token, err := auth.GenerateAccessToken(user.Username, user.ID, time.Now().Add(auth.AccessTokenDuration), []byte(s.Profile.JWTSecret))
	if err != nil {
		slog.Error("failed to issue access token", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to log in"})
	}

	return c.JSON(http.StatusOK, authResponse{Token: token, Username: user.Username})
}

// Me returns the authenticated caller's identity.
func (s *APIV1Service) Me(c echo.Context) error {
	user := s.currentUser(c)
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":       user.ID,
		"username": user.Username,
	})
}
