// Package v1 wires the REST API surface: auth, conversations, training
// instructions, and the streaming chat endpoint.
package v1

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/apsa-ai/nexus/ai"
	"github.com/apsa-ai/nexus/ai/llm"
	"github.com/apsa-ai/nexus/internal/metrics"
	"github.com/apsa-ai/nexus/internal/profile"
	"github.com/apsa-ai/nexus/plugin/storage"
	"github.com/apsa-ai/nexus/server/auth"
	"github.com/apsa-ai/nexus/server/middleware"
	"github.com/apsa-ai/nexus/server/router/api/v1/chat"
	"github.com/apsa-ai/nexus/store"
)

// APIV1Service holds the shared infrastructure of all v1 handlers.
type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Metrics *metrics.Metrics

	// LLM-backed services. All remain nil when no API key is configured;
	// the affected endpoints answer 503.
	LLM          llm.Service
	Orchestrator *chat.Orchestrator
	Titles       *ai.TitleGenerator
	Models       chat.ModelRoster

	authenticator *auth.Authenticator
	chatLimiter   *middleware.RateLimiter
}

// NewAPIV1Service creates the v1 service and initializes the LLM stack when
// the profile carries an API key.
func NewAPIV1Service(profile *profile.Profile, store *store.Store, m *metrics.Metrics) *APIV1Service {
	s := &APIV1Service{
		Profile:       profile,
		Store:         store,
		Metrics:       m,
		authenticator: auth.NewAuthenticator(store, profile.JWTSecret),
		chatLimiter:   middleware.NewRateLimiter(profile.ChatRateLimit, 5),
	}

	if !profile.IsAIEnabled() {
		slog.Warn("LLM API key not configured, chat endpoints disabled")
		return s
	}

	svc, err := llm.NewService(&llm.Config{
		Provider: profile.LLMProvider,
		APIKey:   profile.LLMAPIKey,
		BaseURL:  profile.LLMBaseURL,
		Timeout:  profile.LLMTimeout,
	})
	if err != nil {
		slog.Error("failed to initialize LLM service", "error", err)
		return s
	}

	s.LLM = svc
	s.Models = chat.ModelRoster{
		Default:    profile.ChatModel,
		Multimodal: profile.MultimodalModel,
		Search:     profile.SearchModel,
		Fallback:   profile.FallbackModel,
		Aux:        profile.AuxModel,
	}
	s.Orchestrator = chat.NewOrchestrator(store, svc, storage.NewObjectFetcher(), s.Models, m)
	s.Titles = ai.NewTitleGenerator(svc, profile.AuxModel)
	slog.Info("LLM service initialized",
		"provider", profile.LLMProvider,
		"model", profile.ChatModel,
	)

	// Warm up the provider connection asynchronously to reduce
	// first-request latency. Best effort.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc.Warmup(ctx, profile.ChatModel)
	}()

	return s
}

// RegisterRoutes mounts the v1 routes on the echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	apiGroup := e.Group("/api/v1")

	apiGroup.POST("/auth/signup", s.Signup)
	apiGroup.POST("/auth/login", s.Login)
	apiGroup.GET("/auth/me", s.Me)

	apiGroup.GET("/conversations", s.ListConversations)
	apiGroup.POST("/conversations", s.CreateConversation)
	apiGroup.GET("/conversations/:id", s.GetConversation)
	apiGroup.PATCH("/conversations/:id", s.UpdateConversation)
	apiGroup.DELETE("/conversations/:id", s.DeleteConversation)
	apiGroup.POST("/conversations/:id/generate-title", s.GenerateTitle)

	chatLimit := s.chatLimiter.Middleware(s.rateKey)
	apiGroup.POST("/conversations/:id/messages", s.SendMessage, chatLimit)

	apiGroup.POST("/training/verify-password", s.VerifyTrainingPassword)
	apiGroup.GET("/training/messages", s.ListTrainingInstructions)
	apiGroup.POST("/training/messages", s.CreateTrainingInstruction)
	apiGroup.DELETE("/training/messages/:id", s.DeleteTrainingInstruction)
}

// currentUser resolves the request's bearer token. Anonymous requests return
// nil; an invalid token is also treated as anonymous, the ownership checks
// downstream do the gating.
func (s *APIV1Service) currentUser(c echo.Context) *store.User {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return nil
	}
	user, err := s.authenticator.Authenticate(c.Request().Context(), header)
	if err != nil {
		slog.Debug("request authentication failed", "error", err)
		return nil
	}
	return user
}

// rateKey identifies the caller for rate limiting: username when
// authenticated, remote IP otherwise.
func (s *APIV1Service) rateKey(c echo.Context) string {
	if user := s.currentUser(c); user != nil {
		return "user:" + user.Username
	}
	return "ip:" + c.RealIP()
}
