package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"class_forum/internal/config"
	"class_forum/internal/handler"
	"class_forum/internal/middleware"
	"class_forum/internal/moderation"
	"class_forum/internal/notify"
	"class_forum/internal/pkg"
	"class_forum/internal/realtime"
	"class_forum/internal/repository/mysql"
	"class_forum/internal/repository/redis"
	"class_forum/internal/router"
	"class_forum/internal/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// logger 依赖配置，这里只能先用默认 logger
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}
	log := pkg.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := mysql.Open(cfg.Database)
	if err != nil {
		return err
	}
	// 自动建表
	if err := mysql.AutoMigrate(db); err != nil {
		return err
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	// 仓储
	userRepo := &mysql.UserRepository{DB: db}
	postRepo := &mysql.PostRepository{DB: db}
	commentRepo := &mysql.CommentRepository{DB: db}
	reactionRepo := &mysql.ReactionRepository{DB: db}
	notificationRepo := &mysql.NotificationRepository{DB: db}
	outboxRepo := &mysql.OutboxRepository{DB: db}
	tokenRepo := &redis.TokenRepository{RDB: rdb, TTL: cfg.JWT.AccessTTL}
	emailRepo := &redis.EmailRepository{RDB: rdb}
	reactionCache := &redis.ReactionCache{RDB: rdb}
	lock := &redis.DistLock{RDB: rdb}

	// 推送与分发
	registry := realtime.NewConnRegistry(log)
	dispatcher := notify.NewDispatcher(notificationRepo, registry, log)

	policy := moderation.NewPolicy(cfg.Forum.SuperAdminName).WithSuperAdminEmail(cfg.Forum.SuperAdminEmail)
	tm := pkg.NewTokenManager(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	mailer := pkg.NewSMTPMailer(pkg.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	emailSvc := service.NewEmailService(emailRepo, mailer, log)
	userSvc := service.NewUserService(userRepo, tokenRepo, emailSvc, tm, policy, log)
	postSvc := service.NewPostService(postRepo, userRepo, dispatcher, policy, cfg.Forum.PendingListLimit, log)
	commentSvc := service.NewCommentService(postRepo, commentRepo, dispatcher, policy, log)
	reactionSvc := service.NewReactionService(postRepo, commentRepo, reactionRepo, reactionCache, lock, dispatcher, policy, log)
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, dispatcher, cfg.Forum.NotificationLimit)

	sender, closeSender := newSender(cfg.Kafka, log)
	defer closeSender()
	relayer := service.NewOutboxRelayer(outboxRepo, sender, cfg.Kafka.OutboxBatch, cfg.Kafka.OutboxInterval, cfg.Kafka.OutboxRetention, log)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relayer.Run(ctx)
	}()

	gin.SetMode(cfg.Server.Mode)
	auth := middleware.NewAuthenticator(tm, tokenRepo)
	engine := router.New(router.Handlers{
		User:         handler.NewUserHandler(userSvc),
		Email:        handler.NewEmailHandler(emailSvc),
		Post:         handler.NewPostHandler(postSvc),
		Comment:      handler.NewCommentHandler(commentSvc),
		Reaction:     handler.NewReactionHandler(reactionSvc),
		Notification: handler.NewNotificationHandler(notificationSvc),
		WS: handler.NewWSHandler(auth, registry, cfg.Server.CORSOrigins,
			cfg.Forum.PushBuffer, cfg.Forum.PushWriteTimeout, log),
	}, router.Options{
		Auth:          auth,
		InternalToken: cfg.Server.InternalToken,
		CORSOrigins:   cfg.Server.CORSOrigins,
		Log:           log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	stop()
	<-relayDone

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}

// newSender outbox 中继的投递方式：未配置 broker 时只写日志
func newSender(cfg config.KafkaConfig, log zerolog.Logger) (service.Sender, func()) {
	if len(cfg.Brokers) == 0 {
		log.Warn().Msg("no kafka brokers configured, outbox events are only logged")
		return service.LogSender(log), func() {}
	}
	producer := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.Brokers, Topic: cfg.Topic})
	return service.KafkaSender(producer), func() {
		if err := producer.Close(); err != nil {
			log.Warn().Err(err).Msg("close kafka producer")
		}
	}
}
