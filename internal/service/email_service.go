package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"class_forum/internal/pkg"
	"class_forum/internal/repository/redis"
)

const (
	ScopeRegister = "register"
	ScopeReset    = "reset"
)

type EmailService struct {
	codes  CodeStore
	mailer pkg.Mailer
	ttl    time.Duration
	log    zerolog.Logger
}

func NewEmailService(codes CodeStore, mailer pkg.Mailer, log zerolog.Logger) *EmailService {
	return &EmailService{
		codes:  codes,
		mailer: mailer,
		ttl:    redis.DefaultEmailCodeTTL,
		log:    log.With().Str("component", "email_service").Logger(),
	}
}

var emailSubjects = map[string][2]string{
	ScopeRegister: {"注册验证", "注册验证码"},
	ScopeReset:    {"重置密码", "密码重置验证码"},
}

// SendCode 先写 pending，邮件发出后再转为 confirmed
func (s *EmailService) SendCode(ctx context.Context, scope, email string) error {
	subj, ok := emailSubjects[scope]
	if !ok {
		return fmt.Errorf("%w: invalid scope", ErrInvalidParam)
	}
	code, err := pkg.RandDigits(6)
	if err != nil {
		return err
	}
	if err = s.codes.SetPending(ctx, scope, email, code); err != nil {
		return err
	}

	html := pkg.EmailCodeHTML(subj[0], code, s.ttl)
	if err = s.mailer.Send(email, subj[1], html); err != nil {
		s.log.Warn().Err(err).Str("scope", scope).Msg("send verification email")
		_ = s.codes.DeletePending(ctx, scope, email)
		return err
	}

	if err = s.codes.Confirm(ctx, scope, email); err != nil {
		// 如果确认失败，清除pending键
		_ = s.codes.DeletePending(ctx, scope, email)
		return err
	}
	return nil
}

// VerifyCode 校验验证码，成功后一次性删除
func (s *EmailService) VerifyCode(ctx context.Context, scope, email, code string) (bool, error) {
	val, err := s.codes.GetConfirmed(ctx, scope, email)
	if err != nil {
		return false, err
	}
	if val != code {
		return false, nil
	}
	if err = s.codes.DeleteConfirmed(ctx, scope, email); err != nil {
		return false, err
	}
	return true, nil
}
