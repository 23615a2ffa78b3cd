package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"class_forum/internal/service"
)

type CommentHandler struct {
	svc *service.CommentService
}

type CreateCommentReq struct {
	Content  string `json:"content"`
	AudioURL string `json:"audio_url"`
	ImageURL string `json:"image_url"`
}

func NewCommentHandler(svc *service.CommentService) *CommentHandler {
	return &CommentHandler{svc: svc}
}

func (h *CommentHandler) Create(c *gin.Context) {
	postID, ok := paramID(c)
	if !ok {
		return
	}
	var req CreateCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	comment, err := h.svc.Create(c.Request.Context(), identityFromCtx(c), postID, service.CreateCommentInput{
		Content:  req.Content,
		AudioURL: req.AudioURL,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *CommentHandler) List(c *gin.Context) {
	postID, ok := paramID(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), identityFromCtx(c), postID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), identityFromCtx(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
}
