package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"class_forum/internal/handler"
	"class_forum/internal/middleware"
)

type UserAPI interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Logout(c *gin.Context)
	TokenRefresh(c *gin.Context)
	ResetPassword(c *gin.Context)
	ChangePassword(c *gin.Context)
	Me(c *gin.Context)
	SetRole(c *gin.Context)
}

type EmailAPI interface {
	SendCode(c *gin.Context)
}

type PostAPI interface {
	CreatePost(c *gin.Context)
	List(c *gin.Context)
	Pending(c *gin.Context)
	Get(c *gin.Context)
	DeletePost(c *gin.Context)
	Approve(c *gin.Context)
	Reject(c *gin.Context)
	Pin(c *gin.Context)
	Unpin(c *gin.Context)
	Lock(c *gin.Context)
	Unlock(c *gin.Context)
}

type CommentAPI interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Delete(c *gin.Context)
}

type ReactionAPI interface {
	SetPost(c *gin.Context)
	SetComment(c *gin.Context)
	GetPost(c *gin.Context)
	GetComment(c *gin.Context)
}

type NotificationAPI interface {
	List(c *gin.Context)
	UnreadCount(c *gin.Context)
	MarkRead(c *gin.Context)
	MarkAllRead(c *gin.Context)
	Create(c *gin.Context)
}

type WSAPI interface {
	Serve(c *gin.Context)
}

var (
	_ UserAPI         = (*handler.UserHandler)(nil)
	_ EmailAPI        = (*handler.EmailHandler)(nil)
	_ PostAPI         = (*handler.PostHandler)(nil)
	_ CommentAPI      = (*handler.CommentHandler)(nil)
	_ ReactionAPI     = (*handler.ReactionHandler)(nil)
	_ NotificationAPI = (*handler.NotificationHandler)(nil)
	_ WSAPI           = (*handler.WSHandler)(nil)
)

type Handlers struct {
	User         UserAPI
	Email        EmailAPI
	Post         PostAPI
	Comment      CommentAPI
	Reaction     ReactionAPI
	Notification NotificationAPI
	WS           WSAPI
}

type Options struct {
	Auth          *middleware.Authenticator
	InternalToken string
	CORSOrigins   []string
	Log           zerolog.Logger
}

func New(h Handlers, opt Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(opt.Log))
	r.Use(cors.New(corsConfig(opt.CORSOrigins)))

	auth := opt.Auth.Required()
	optional := opt.Auth.Optional()

	// 邮件相关接口
	emailGroup := r.Group("/api/email")
	{
		emailGroup.POST("/:scope/code", h.Email.SendCode)
	}

	// 用户相关接口
	userGroup := r.Group("/api/user")
	{
		userGroup.POST("/register", h.User.Register)
		userGroup.POST("/login", h.User.Login)
		userGroup.POST("/logout", auth, h.User.Logout)
		userGroup.POST("/reset", h.User.ResetPassword)
	}

	// token相关接口
	tokenGroup := r.Group("/api/token")
	{
		tokenGroup.POST("/refresh", h.User.TokenRefresh)
	}

	// 登录态接口
	authGroup := r.Group("/api/auth")
	authGroup.Use(auth)
	{
		authGroup.POST("/change-password", h.User.ChangePassword)
		authGroup.GET("/me", h.User.Me)
	}

	adminGroup := r.Group("/api/admin")
	adminGroup.Use(auth)
	{
		adminGroup.PUT("/users/:id/role", h.User.SetRole)
	}

	// 帖子相关接口：读接口允许匿名
	postGroup := r.Group("/api/post")
	{
		postGroup.GET("/list", optional, h.Post.List)
		postGroup.GET("/pending", auth, h.Post.Pending)
		postGroup.GET("/:id", optional, h.Post.Get)
		postGroup.GET("/:id/comments", optional, h.Comment.List)
		postGroup.GET("/:id/reactions", optional, h.Reaction.GetPost)

		postGroup.POST("", auth, h.Post.CreatePost)
		postGroup.DELETE("/:id", auth, h.Post.DeletePost)
		postGroup.POST("/:id/approve", auth, h.Post.Approve)
		postGroup.POST("/:id/reject", auth, h.Post.Reject)
		postGroup.POST("/:id/pin", auth, h.Post.Pin)
		postGroup.POST("/:id/unpin", auth, h.Post.Unpin)
		postGroup.POST("/:id/lock", auth, h.Post.Lock)
		postGroup.POST("/:id/unlock", auth, h.Post.Unlock)
		postGroup.POST("/:id/comments", auth, h.Comment.Create)
		postGroup.PUT("/:id/reaction", auth, h.Reaction.SetPost)
	}

	// 评论相关接口
	commentGroup := r.Group("/api/comment")
	{
		commentGroup.GET("/:id/reactions", optional, h.Reaction.GetComment)
		commentGroup.DELETE("/:id", auth, h.Comment.Delete)
		commentGroup.PUT("/:id/reaction", auth, h.Reaction.SetComment)
	}

	// 通知相关接口
	notifyGroup := r.Group("/api/notifications")
	notifyGroup.Use(auth)
	{
		notifyGroup.GET("", h.Notification.List)
		notifyGroup.GET("/unread-count", h.Notification.UnreadCount)
		notifyGroup.POST("/read-all", h.Notification.MarkAllRead)
		notifyGroup.POST("/:id/read", h.Notification.MarkRead)
	}

	// 内部接口
	r.POST("/notifications", middleware.InternalOnly(opt.InternalToken), h.Notification.Create)

	r.GET("/ws", h.WS.Serve)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// requestLogger 每个请求一条访问日志，500 时附带错误
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		if status >= 500 {
			ev = log.Error()
			if err := c.Errors.Last(); err != nil {
				ev = ev.Err(err.Err)
			}
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}
