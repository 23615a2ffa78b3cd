package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"class_forum/internal/middleware"
	"class_forum/internal/moderation"
	"class_forum/internal/service"
)

// writeError 统一把业务错误映射为 HTTP 状态码
func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"msg": msg})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrPostNotAvailable),
		errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrCommentNotFound),
		errors.Is(err, service.ErrNotificationNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrPostLocked):
		return http.StatusForbidden
	case errors.Is(err, service.ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidParam),
		errors.Is(err, service.ErrInvalidEmoji),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrVerificationFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func userIDFromCtx(c *gin.Context) uint64 {
	if v, ok := c.Get(middleware.ContextUserIDKey); ok {
		if id, ok2 := v.(uint64); ok2 {
			return id
		}
	}
	return 0
}

// identityFromCtx 未登录时返回 nil
func identityFromCtx(c *gin.Context) *moderation.Identity {
	id := userIDFromCtx(c)
	if id == 0 {
		return nil
	}
	role, ok := moderation.ParseRole(c.GetString(middleware.ContextRoleKey))
	if !ok {
		role = moderation.RoleMember
	}
	return &moderation.Identity{
		ID:   id,
		Name: c.GetString(middleware.ContextUsernameKey),
		Role: role,
	}
}

// paramID 解析路径中的 id，失败时已写回 400
func paramID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid id"})
		return 0, false
	}
	return id, true
}
