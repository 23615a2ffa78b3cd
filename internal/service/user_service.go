package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"class_forum/internal/model"
	"class_forum/internal/moderation"
	"class_forum/internal/pkg"
	"class_forum/internal/repository/mysql"
)

const minPasswordLen = 6

type RegisterInput struct {
	Username string
	Password string
	Email    string
	Code     string
}

type UserService struct {
	users    UserStore
	tokens   TokenStore
	emailSvc *EmailService
	tm       *pkg.TokenManager
	policy   moderation.Policy
	log      zerolog.Logger
}

func NewUserService(users UserStore, tokens TokenStore, emailSvc *EmailService, tm *pkg.TokenManager, policy moderation.Policy, log zerolog.Logger) *UserService {
	return &UserService{
		users:    users,
		tokens:   tokens,
		emailSvc: emailSvc,
		tm:       tm,
		policy:   policy,
		log:      log.With().Str("component", "user_service").Logger(),
	}
}

// IdentityOf 请求者身份；未知角色按 member 处理
func IdentityOf(u *model.User) *moderation.Identity {
	role, ok := moderation.ParseRole(u.Role)
	if !ok {
		role = moderation.RoleMember
	}
	return &moderation.Identity{ID: u.ID, Name: u.Username, Role: role}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || len(in.Password) < minPasswordLen {
		return fmt.Errorf("%w: username, email and a password of at least %d characters required", ErrInvalidParam, minPasswordLen)
	}

	if !s.policy.CanClaimName(in.Username, in.Email) {
		return fmt.Errorf("%w: username is reserved", ErrForbidden)
	}

	// 验证code是否正确
	ok, err := s.emailSvc.VerifyCode(ctx, ScopeRegister, in.Email, in.Code)
	if err != nil || !ok {
		return ErrVerificationFailed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.Create(ctx, &model.User{
		Username: in.Username,
		Password: string(hash),
		Email:    in.Email,
		Role:     string(moderation.RoleMember),
	})
}

// Login 新登录会顶掉旧的 access token
func (s *UserService) Login(ctx context.Context, username, password string) (*pkg.Pair, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, userErr(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidPassword
	}
	return s.issue(ctx, user)
}

func (s *UserService) issue(ctx context.Context, user *model.User) (*pkg.Pair, error) {
	token, err := s.tm.GeneratePair(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, err
	}
	// 将token写入redis
	if err = s.tokens.AddUserToken(ctx, user.ID, token.AccessToken); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *UserService) Logout(ctx context.Context, userID uint64) error {
	return s.tokens.DeleteUserToken(ctx, userID)
}

// Refresh 角色以数据库为准重新签发
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	claims, err := s.tm.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, userErr(err)
	}
	return s.issue(ctx, user)
}

func (s *UserService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: password too short", ErrInvalidParam)
	}
	// 校验code正确性
	ok, err := s.emailSvc.VerifyCode(ctx, ScopeReset, email, code)
	if err != nil || !ok {
		return ErrVerificationFailed
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return userErr(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err = s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	return s.Logout(ctx, user.ID)
}

// ChangePassword 登录态修改密码，成功后需要重新登录
func (s *UserService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: password too short", ErrInvalidParam)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return userErr(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err = s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}
	return s.Logout(ctx, userID)
}

func (s *UserService) Me(ctx context.Context, userID uint64) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, userErr(err)
	}
	return user, nil
}

// SetRole 仅 admin 或超级管理员可以调整角色；目标用户需重新登录以刷新令牌中的角色
func (s *UserService) SetRole(ctx context.Context, actor *moderation.Identity, userID uint64, role string) error {
	if actor == nil || (actor.Role != moderation.RoleAdmin && !s.policy.IsSuperAdmin(actor)) {
		return ErrForbidden
	}
	r, ok := moderation.ParseRole(role)
	if !ok {
		return ErrInvalidRole
	}
	found, err := s.users.UpdateRole(ctx, userID, r)
	if err != nil {
		return err
	}
	if !found {
		return ErrUserNotFound
	}
	if err := s.tokens.DeleteUserToken(ctx, userID); err != nil {
		s.log.Warn().Err(err).Uint64("user_id", userID).Msg("revoke token after role change")
	}
	return nil
}

func userErr(err error) error {
	if errors.Is(err, mysql.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
