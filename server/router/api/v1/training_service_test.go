package v1

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/apsa-ai/nexus/internal/profile"
)

func newTrainingTestContext(t *testing.T, password, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/training/verify-password", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if password != "" {
		req.Header.Set(trainingPasswordHeader, password)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestVerifyTrainingPasswordUnconfigured(t *testing.T) {
	s := &APIV1Service{Profile: &profile.Profile{}}

	c, rec := newTrainingTestContext(t, "", `{"password":"anything"}`)
	require.NoError(t, s.VerifyTrainingPassword(c))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVerifyTrainingPasswordMismatch(t *testing.T) {
	s := &APIV1Service{Profile: &profile.Profile{TrainingPassword: "secret"}}

	c, rec := newTrainingTestContext(t, "", `{"password":"wrong"}`)
	require.NoError(t, s.VerifyTrainingPassword(c))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyTrainingPasswordMatch(t *testing.T) {
	s := &APIV1Service{Profile: &profile.Profile{TrainingPassword: "secret"}}

	c, rec := newTrainingTestContext(t, "", `{"password":"secret"}`)
	require.NoError(t, s.VerifyTrainingPassword(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":true`)
}

func TestTrainingGateChecksHeader(t *testing.T) {
	s := &APIV1Service{Profile: &profile.Profile{TrainingPassword: "secret"}}

	c, rec := newTrainingTestContext(t, "wrong", `{}`)
	ok, err := s.checkTrainingAccess(c)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	c, _ = newTrainingTestContext(t, "secret", `{}`)
	ok, err = s.checkTrainingAccess(c)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTrainingPasswordBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	s := &APIV1Service{Profile: &profile.Profile{TrainingPassword: string(hash)}}
	require.True(t, s.trainingPasswordMatches("secret"))
	require.False(t, s.trainingPasswordMatches("wrong"))
}
