package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vidstream/vidstream/internal/types"
)

// probeHandler records whether it ran and which identity it saw.
type probeHandler struct {
	called bool
	userID string
	hasID  bool
}

func (p *probeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.called = true
	p.userID, p.hasID = GetUserIDFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func TestAuthenticate(t *testing.T) {
	tokens := NewTokenIssuer(testJWTConfig(), slog.Default())
	user := testUser()

	validToken, err := tokens.IssueAccessToken(user)
	assert.NoError(t, err)

	t.Run("ValidCookie", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("GetUserByID", mock.Anything, user.ID).
			Return(user.Sanitized(), nil).Once()

		probe := &probeHandler{}
		mw := Authenticate(slog.Default(), tokens, mockService)(probe)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: validToken})
		rr := httptest.NewRecorder()

		mw.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, probe.called)
		assert.Equal(t, user.ID, probe.userID)
		mockService.AssertExpectations(t)
	})

	t.Run("ValidBearerHeader", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("GetUserByID", mock.Anything, user.ID).
			Return(user.Sanitized(), nil).Once()

		probe := &probeHandler{}
		mw := Authenticate(slog.Default(), tokens, mockService)(probe)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+validToken)
		rr := httptest.NewRecorder()

		mw.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, user.ID, probe.userID)
	})

	t.Run("CookieWinsOverHeader", func(t *testing.T) {
		otherUser := testUser()
		otherUser.ID = "other-user-id"
		headerToken, err := tokens.IssueAccessToken(otherUser)
		assert.NoError(t, err)

		mockService := new(MockAuthService)
		mockService.On("GetUserByID", mock.Anything, user.ID).
			Return(user.Sanitized(), nil).Once()

		probe := &probeHandler{}
		mw := Authenticate(slog.Default(), tokens, mockService)(probe)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: validToken})
		req.Header.Set("Authorization", "Bearer "+headerToken)
		rr := httptest.NewRecorder()

		mw.ServeHTTP(rr, req)

		assert.Equal(t, user.ID, probe.userID)
		mockService.AssertExpectations(t)
	})

	t.Run("MissingToken", func(t *testing.T) {
		mockService := new(MockAuthService)
		probe := &probeHandler{}
		mw := Authenticate(slog.Default(), tokens, mockService)(probe)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		mw.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, probe.called)
	})

	t.Run("MalformedAuthorizationHeader", func(t *testing.T) {
		mockService := new(MockAuthService)
		probe := &probeHandler{}
		mw := Authenticate(slog.Default(), tokens, mockService)(probe)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", validToken) // no Bearer prefix
		rr := httptest.NewRecorder()

		mw.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, probe.called)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		mockService := new(MockAuthService)
		probe := &probeHandler{}
		mw := Authenticate(slog.Default(), tokens, mockService)(probe)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "garbage"})
		rr := httptest.NewRecorder()

		mw.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, probe.called)
	})

	t.Run("IdentityDeletedSinceIssuance", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("GetUserByID", mock.Anything, user.ID).
			Return(nil, types.ErrNotFound).Once()

		probe := &probeHandler{}
		mw := Authenticate(slog.Default(), tokens, mockService)(probe)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: validToken})
		rr := httptest.NewRecorder()

		mw.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, probe.called)
	})
}

func TestOptionalAuthenticate(t *testing.T) {
	tokens := NewTokenIssuer(testJWTConfig(), slog.Default())
	user := testUser()

	t.Run("AnonymousPassesThrough", func(t *testing.T) {
		mockService := new(MockAuthService)
		probe := &probeHandler{}
		mw := OptionalAuthenticate(slog.Default(), tokens, mockService)(probe)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		mw.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, probe.called)
		assert.False(t, probe.hasID)
	})

	t.Run("InvalidTokenPassesAnonymously", func(t *testing.T) {
		mockService := new(MockAuthService)
		probe := &probeHandler{}
		mw := OptionalAuthenticate(slog.Default(), tokens, mockService)(probe)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "garbage"})
		rr := httptest.NewRecorder()

		mw.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, probe.called)
		assert.False(t, probe.hasID)
	})

	t.Run("ValidTokenAttachesIdentity", func(t *testing.T) {
		validToken, err := tokens.IssueAccessToken(user)
		assert.NoError(t, err)

		mockService := new(MockAuthService)
		mockService.On("GetUserByID", mock.Anything, user.ID).
			Return(user.Sanitized(), nil).Once()

		probe := &probeHandler{}
		mw := OptionalAuthenticate(slog.Default(), tokens, mockService)(probe)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: validToken})
		rr := httptest.NewRecorder()

		mw.ServeHTTP(rr, req)

		assert.True(t, probe.hasID)
		assert.Equal(t, user.ID, probe.userID)
	})
}
