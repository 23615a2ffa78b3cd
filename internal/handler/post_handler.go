package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"class_forum/internal/model"
	"class_forum/internal/moderation"
	"class_forum/internal/service"
)

type PostHandler struct {
	svc *service.PostService
}

type CreatePostReq struct {
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content"`
	Category string `json:"category"`
	ImageURL string `json:"image_url"`
	AudioURL string `json:"audio_url"`
	LinkURL  string `json:"link_url"`
}

func NewPostHandler(svc *service.PostService) *PostHandler {
	return &PostHandler{svc: svc}
}

// CreatePost 创建帖子接口，新帖进入待审
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req CreatePostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	post, err := h.svc.CreatePost(c.Request.Context(), identityFromCtx(c), service.CreatePostInput{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		ImageURL: req.ImageURL,
		AudioURL: req.AudioURL,
		LinkURL:  req.LinkURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": post.ID, "status": post.Status})
}

// List 帖子列表（页码分页），匿名可访问
func (h *PostHandler) List(c *gin.Context) {
	page, size := 1, 20
	if v := c.Query("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid page/size"})
			return
		}
		page = p
	}
	if v := c.Query("size"); v != "" {
		s, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid page/size"})
			return
		}
		size = s
	}

	list, err := h.svc.ListPosts(c.Request.Context(), identityFromCtx(c), c.Query("category"), page, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"list": list,
		"page": page,
		"size": size,
	})
}

// Pending 待审队列
func (h *PostHandler) Pending(c *gin.Context) {
	list, err := h.svc.ListPending(c.Request.Context(), identityFromCtx(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *PostHandler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	post, err := h.svc.GetPost(c.Request.Context(), identityFromCtx(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost 删除帖子接口
func (h *PostHandler) DeletePost(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.DeletePost(c.Request.Context(), identityFromCtx(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
}

func (h *PostHandler) Approve(c *gin.Context) {
	h.review(c, h.svc.Approve)
}

func (h *PostHandler) Reject(c *gin.Context) {
	h.review(c, h.svc.Reject)
}

type reviewFunc func(ctx context.Context, actor *moderation.Identity, postID uint64) (*model.Post, error)

func (h *PostHandler) review(c *gin.Context, fn reviewFunc) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	post, err := fn(c.Request.Context(), identityFromCtx(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": post.ID, "status": post.Status})
}

func (h *PostHandler) Pin(c *gin.Context)    { h.flag(c, h.svc.Pin, true) }
func (h *PostHandler) Unpin(c *gin.Context)  { h.flag(c, h.svc.Pin, false) }
func (h *PostHandler) Lock(c *gin.Context)   { h.flag(c, h.svc.Lock, true) }
func (h *PostHandler) Unlock(c *gin.Context) { h.flag(c, h.svc.Lock, false) }

type flagFunc func(ctx context.Context, actor *moderation.Identity, postID uint64, on bool) error

func (h *PostHandler) flag(c *gin.Context, fn flagFunc, on bool) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), identityFromCtx(c), id, on); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}
