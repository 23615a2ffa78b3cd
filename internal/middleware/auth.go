package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"class_forum/internal/pkg"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
	ContextRoleKey     = "role"

	InternalTokenHeader = "X-Internal-Token"
)

// TokenStore 当前有效的 access token（单端登录）
type TokenStore interface {
	GetUserToken(ctx context.Context, userID uint64) (string, error)
	ExtendUserToken(ctx context.Context, userID uint64) error
}

// Authenticator 校验 JWT 并与 redis 中保存的令牌比对
type Authenticator struct {
	tm     *pkg.TokenManager
	tokens TokenStore
}

func NewAuthenticator(tm *pkg.TokenManager, tokens TokenStore) *Authenticator {
	return &Authenticator{tm: tm, tokens: tokens}
}

// Verify 返回令牌中的身份信息；被顶下线的令牌视为无效
func (a *Authenticator) Verify(ctx context.Context, tokenStr string) (*pkg.Claims, error) {
	claims, err := a.tm.ParseAccess(tokenStr)
	if err != nil {
		return nil, err
	}
	origin, err := a.tokens.GetUserToken(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if origin != tokenStr {
		return nil, pkg.ErrTokenInvalid
	}
	return claims, nil
}

func bearer(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setIdentity(c *gin.Context, claims *pkg.Claims) {
	c.Set(ContextUserIDKey, claims.UserID)
	c.Set(ContextUsernameKey, claims.Username)
	c.Set(ContextRoleKey, claims.Role)
}

// Required 必须登录
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing authorization header"})
			return
		}
		tokenStr, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid authorization format"})
			return
		}

		claims, err := a.Verify(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid or expired token"})
			return
		}

		// 校验通过后更新过期时间
		if err = a.tokens.ExtendUserToken(c.Request.Context(), claims.UserID); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// Optional 带合法令牌时注入身份，否则按匿名继续
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, ok := bearer(c); ok {
			if claims, err := a.Verify(c.Request.Context(), tokenStr); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

// InternalOnly 内部调用凭证；未配置凭证时一律拒绝
func InternalOnly(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(InternalTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "internal endpoint"})
			return
		}
		c.Next()
	}
}
