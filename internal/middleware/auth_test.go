package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class_forum/internal/pkg"
)

type memTokens map[uint64]string

func (m memTokens) GetUserToken(_ context.Context, id uint64) (string, error) {
	t, ok := m[id]
	if !ok {
		return "", errors.New("token not found")
	}
	return t, nil
}

func (m memTokens) ExtendUserToken(context.Context, uint64) error { return nil }

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		id, _ := c.Get(ContextUserIDKey)
		role, _ := c.Get(ContextRoleKey)
		c.JSON(http.StatusOK, gin.H{"user_id": id, "role": role})
	})
	r.GET("/", handlers...)
	return r
}

func do(r http.Handler, header, value string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticator_Required(t *testing.T) {
	tm := pkg.NewTokenManager("a", "r", time.Minute, time.Hour)
	pair, err := tm.GeneratePair(5, "alice", "teacher")
	require.NoError(t, err)
	stale, err := pkg.NewTokenManager("a", "r", time.Hour, time.Hour).GeneratePair(5, "alice", "teacher")
	require.NoError(t, err)

	tokens := memTokens{5: pair.AccessToken}
	r := newEngine(NewAuthenticator(tm, tokens).Required())

	w := do(r, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "Authorization", "Token "+pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 签名合法但已被新登录顶掉
	w = do(r, "Authorization", "Bearer "+stale.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "Authorization", "Bearer "+pair.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":5,"role":"teacher"}`, w.Body.String())
}

func TestAuthenticator_Optional(t *testing.T) {
	tm := pkg.NewTokenManager("a", "r", time.Minute, time.Hour)
	pair, err := tm.GeneratePair(5, "alice", "member")
	require.NoError(t, err)
	r := newEngine(NewAuthenticator(tm, memTokens{5: pair.AccessToken}).Optional())

	w := do(r, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":null,"role":null}`, w.Body.String())

	w = do(r, "Authorization", "Bearer not-a-jwt")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":null,"role":null}`, w.Body.String())

	w = do(r, "Authorization", "Bearer "+pair.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":5,"role":"member"}`, w.Body.String())
}

func TestInternalOnly(t *testing.T) {
	r := newEngine(InternalOnly("s3cret"))
	assert.Equal(t, http.StatusForbidden, do(r, "", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, InternalTokenHeader, "wrong").Code)
	assert.Equal(t, http.StatusOK, do(r, InternalTokenHeader, "s3cret").Code)

	closed := newEngine(InternalOnly(""))
	assert.Equal(t, http.StatusForbidden, do(closed, InternalTokenHeader, "").Code)
}
