package v1

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/apsa-ai/nexus/store"
)

// trainingPasswordHeader carries the gate password on training requests.
const trainingPasswordHeader = "X-Training-Password"

// trainingPasswordMatches compares a candidate against the configured gate.
// The configured value may be a bcrypt hash or a plain secret; plain secrets
// are compared in constant time.
func (s *APIV1Service) trainingPasswordMatches(candidate string) bool {
	configured := s.Profile.TrainingPassword
	if strings.HasPrefix(configured, "$2a$") || strings.HasPrefix(configured, "$2b$") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(candidate)) == 1
}

// checkTrainingAccess enforces the training gate. When access is denied the
// response has already been written and ok is false.
func (s *APIV1Service) checkTrainingAccess(c echo.Context) (bool, error) {
	if !s.Profile.IsTrainingEnabled() {
		return false, c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Training mode is not configured"})
	}
	if !s.trainingPasswordMatches(c.Request().Header.Get(trainingPasswordHeader)) {
		return false, c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid training password"})
	}
	return true, nil
}

type verifyPasswordRequest struct {
	Password string `json:"password"`
}

// VerifyTrainingPassword checks a candidate password against the gate.
func (s *APIV1Service) VerifyTrainingPassword(c echo.Context) error {
	if !s.Profile.IsTrainingEnabled() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Training mode is not configured"})
	}

	var req verifyPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if !s.trainingPasswordMatches(req.Password) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid training password"})
	}

	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

type trainingInstructionResponse struct {
	ID          int32  `json:"id"`
	Instruction string `json:"instruction"`
	CreatedTs   int64  `json:"createdTs"`
}

// ListTrainingInstructions returns all instructions, newest first.
func (s *APIV1Service) ListTrainingInstructions(c echo.Context) error {
	if ok, err := s.checkTrainingAccess(c); !ok {
		return err
	}

	list, err := s.Store.ListTrainingInstructions(c.Request().Context())
	if err != nil {
		slog.Error("failed to list training instructions", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch training instructions"})
	}

	response := make([]trainingInstructionResponse, 0, len(list))
	for _, instruction := range list {
		response = append(response, trainingInstructionResponse{
			ID:          instruction.ID,
			Instruction: instruction.Instruction,
			CreatedTs:   instruction.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, response)
}

type createTrainingInstructionRequest struct {
	Instruction string `json:"instruction"`
}

// CreateTrainingInstruction adds a custom instruction to the system prompt
// of every future chat turn.
func (s *APIV1Service) CreateTrainingInstruction(c echo.Context) error {
	if ok, err := s.checkTrainingAccess(c); !ok {
		return err
	}

	var req createTrainingInstructionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Instruction is required"})
	}

	created, err := s.Store.CreateTrainingInstruction(c.Request().Context(), &store.TrainingInstruction{
		Instruction: instruction,
		CreatedTs:   time.Now().Unix(),
	})
	if err != nil {
		slog.Error("failed to create training instruction", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save training instruction"})
	}

	return c.JSON(http.StatusCreated, trainingInstructionResponse{
		ID:          created.ID,
		Instruction: created.Instruction,
		CreatedTs:   created.CreatedTs,
	})
}

// DeleteTrainingInstruction removes an instruction.
func (s *APIV1Service) DeleteTrainingInstruction(c echo.Context) error {
	if ok, err := s.checkTrainingAccess(c); !ok {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid instruction id"})
	}

	if err := s.Store.DeleteTrainingInstruction(c.Request().Context(), &store.DeleteTrainingInstruction{ID: int32(id)}); err != nil {
		slog.Error("failed to delete training instruction", "id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete training instruction"})
	}

	return c.NoContent(http.StatusNoContent)
}
