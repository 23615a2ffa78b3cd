package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"class_forum/internal/model"
	"class_forum/internal/service"
)

type ReactionHandler struct {
	svc *service.ReactionService
}

// SetReactionReq emoji 为空表示取消
type SetReactionReq struct {
	Emoji string `json:"emoji"`
}

func NewReactionHandler(svc *service.ReactionService) *ReactionHandler {
	return &ReactionHandler{svc: svc}
}

func (h *ReactionHandler) SetPost(c *gin.Context)    { h.set(c, model.SubjectPost) }
func (h *ReactionHandler) SetComment(c *gin.Context) { h.set(c, model.SubjectComment) }
func (h *ReactionHandler) GetPost(c *gin.Context)    { h.get(c, model.SubjectPost) }
func (h *ReactionHandler) GetComment(c *gin.Context) { h.get(c, model.SubjectComment) }

func (h *ReactionHandler) set(c *gin.Context, subject model.SubjectType) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req SetReactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	sum, err := h.svc.Set(c.Request.Context(), identityFromCtx(c), subject, id, req.Emoji)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *ReactionHandler) get(c *gin.Context, subject model.SubjectType) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	sum, err := h.svc.Summary(c.Request.Context(), identityFromCtx(c), subject, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": sum.Counts, "mine": sum.Mine, "allowed": service.AllowedEmojis})
}
