package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	"github.com/oksasatya/go-account-service/internal/domain/repository/repositorytest"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

type jwtVerifier struct{ m *helpers.JWTManager }

func (v jwtVerifier) VerifyAccess(token string) (*helpers.Claims, error) {
	return v.m.ParseAccessToken(token)
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func init() { gin.SetMode(gin.TestMode) }

func setupAuth(t *testing.T, optional bool) (*gin.Engine, *helpers.JWTManager, *repositorytest.Memory, *entity.User) {
	t.Helper()
	jwt := helpers.NewJWTManager("a", "r", time.Minute, time.Hour)
	users := repositorytest.NewMemory()
	u := &entity.User{Username: "annl", Email: "ann@x.com", Fullname: "Ann Lee"}
	require.NoError(t, users.Create(context.Background(), u, "p@ss1234"))

	gate := Auth(jwtVerifier{jwt}, users)
	if optional {
		gate = OptionalAuth(jwtVerifier{jwt}, users)
	}
	r := gin.New()
	r.Use(ErrorHandler(helpers.NewNopLogger()))
	r.GET("/me", gate, func(c *gin.Context) {
		cur := CurrentUser(c)
		if cur == nil {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		c.JSON(http.StatusOK, cur)
	})
	return r, jwt, users, u
}

func accessFor(t *testing.T, jwt *helpers.JWTManager, u *entity.User) string {
	t.Helper()
	tok, _, err := jwt.GenerateAccessToken(helpers.AccessIdentity{UserID: u.ID, Username: u.Username})
	require.NoError(t, err)
	return tok
}

func do(r http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestAuth_MissingToken(t *testing.T) {
	r, _, _, _ := setupAuth(t, false)
	w, env := do(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, http.StatusUnauthorized, env.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "Access token is required", env.Message)
}

func TestAuth_CookieAndBearer(t *testing.T) {
	r, jwt, _, u := setupAuth(t, false)
	tok := accessFor(t, jwt, u)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: helpers.AccessTokenCookie, Value: tok})
	w, _ := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"annl"`)
	assert.NotContains(t, w.Body.String(), "password")

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w, _ = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	r, jwt, _, u := setupAuth(t, false)
	refresh, _, err := jwt.GenerateRefreshToken(u.ID)
	require.NoError(t, err)

	for _, tok := range []string{"garbage", refresh} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w, env := do(r, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid or expired access token", env.Message)
	}
}

func TestAuth_UserGone(t *testing.T) {
	r, jwt, users, u := setupAuth(t, false)
	tok := accessFor(t, jwt, u)
	users.Delete(u.ID)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w, env := do(r, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, env.StatusCode)
}

func TestOptionalAuth(t *testing.T) {
	r, jwt, _, u := setupAuth(t, true)

	w, _ := do(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anonymous")

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessFor(t, jwt, u))
	w, _ = do(r, req)
	assert.Contains(t, w.Body.String(), `"username":"annl"`)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w, _ = do(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
