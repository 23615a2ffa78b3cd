package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"class_forum/internal/service"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

// CreateNotificationReq 内部接口请求体
type CreateNotificationReq struct {
	UserID  uint64 `json:"user_id" binding:"required"`
	Type    string `json:"type" binding:"required"`
	Message string `json:"message" binding:"required"`
	Link    string `json:"link"`
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List 拉取通知；unread=1 只看未读
func (h *NotificationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	unread := c.Query("unread") == "1" || c.Query("unread") == "true"

	list, err := h.svc.List(c.Request.Context(), userIDFromCtx(c), unread, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.svc.UnreadCount(c.Request.Context(), userIDFromCtx(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), userIDFromCtx(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.svc.MarkAllRead(c.Request.Context(), userIDFromCtx(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Create 内部调用：写库失败返回 500，推送失败不影响结果
func (h *NotificationHandler) Create(c *gin.Context) {
	var req CreateNotificationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	n, err := h.svc.Create(c.Request.Context(), service.CreateNotificationInput{
		UserID:  req.UserID,
		Type:    req.Type,
		Message: req.Message,
		Link:    req.Link,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}
