package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserDTO struct {
	ID           int64      `json:"id"`
	TenantID     *int64     `json:"tenant_id"`
	Email        string     `json:"email"`
	Role         model.Role `json:"role"`
	TokenVersion int        `json:"token_version"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

type JwtAccessTokenDTO struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
}

type RegisterInput struct {
	TenantSlug string
	Email      string
	Password   string
}

type AuthLoginResponse struct {
	User  UserDTO           `json:"user"`
	Token JwtAccessTokenDTO `json:"token"`
}

type AuthUsecase struct {
	cfg     config.Config
	users   repository.UserRepository
	tenants repository.TenantRepository
	log     *zap.Logger
	now     func() time.Time
}

func NewAuthUsecase(cfg config.Config, users repository.UserRepository, tenants repository.TenantRepository, log *zap.Logger) *AuthUsecase {
	return &AuthUsecase{cfg: cfg, users: users, tenants: tenants, log: log, now: time.Now}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func hashPassword(pw string) (string, error) {
	if len(pw) < 8 || len(pw) > 72 {
		return "", NewHTTPError(http.StatusBadRequest, "invalid password")
	}
	//パスワードは必ずハッシュ化して保存
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return string(h), nil
}

// テナントのslugを指定して顧客(USER)として登録する
func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (UserDTO, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return UserDTO{}, NewHTTPError(http.StatusBadRequest, "invalid email")
	}

	tenant, err := u.tenants.FindBySlug(ctx, strings.TrimSpace(in.TenantSlug))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !tenant.IsActive) {
		return UserDTO{}, NewHTTPError(http.StatusNotFound, "tenant not found")
	}
	if err != nil {
		return UserDTO{}, errDB()
	}

	pwHash, err := hashPassword(in.Password)
	if err != nil {
		return UserDTO{}, err
	}

	tid := tenant.ID
	user := &model.User{
		TenantID:     &tid,
		Email:        email,
		PasswordHash: pwHash,
		Role:         model.RoleUser,
		IsActive:     true,
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return UserDTO{}, NewHTTPError(http.StatusConflict, "email already registered")
		}
		return UserDTO{}, errDB()
	}

	return toUserDTO(user), nil
}

func (u *AuthUsecase) Login(ctx context.Context, email, password string) (AuthLoginResponse, error) {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return AuthLoginResponse{}, errDB()
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return AuthLoginResponse{}, NewHTTPError(http.StatusForbidden, "user inactive")
	}
	if user.TenantID != nil {
		t, err := u.tenants.FindByID(ctx, *user.TenantID)
		if err != nil || !t.IsActive {
			return AuthLoginResponse{}, NewHTTPError(http.StatusForbidden, "tenant inactive")
		}
	}

	now := u.now()
	user.LastLoginAt = &now
	if err := u.users.Update(ctx, user); err != nil {
		u.log.Warn("update last_login_at failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	token, expiresIn, err := u.issueAccessToken(user, now)
	if err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return AuthLoginResponse{
		User: toUserDTO(user),
		Token: JwtAccessTokenDTO{
			AccessToken:  token,
			ExpiresIn:    expiresIn,
			TokenVersion: user.TokenVersion,
		},
	}, nil
}

func (u *AuthUsecase) Me(ctx context.Context, userID int64) (UserDTO, error) {
	if userID <= 0 {
		return UserDTO{}, errUnauthorized()
	}
	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return UserDTO{}, errUnauthorized()
	}
	if err != nil {
		return UserDTO{}, errDB()
	}
	if !user.IsActive {
		return UserDTO{}, errForbidden()
	}
	return toUserDTO(user), nil
}

// HS256。claimsはsub/role/tid/tv/iat/exp
func (u *AuthUsecase) issueAccessToken(user *model.User, now time.Time) (string, int, error) {
	ttl := u.cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"tid":  user.TenantIDValue(),
		"tv":   user.TokenVersion,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(u.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}
	return signed, int(ttl.Seconds()), nil
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		TenantID:     u.TenantID,
		Email:        u.Email,
		Role:         u.Role,
		TokenVersion: u.TokenVersion,
		IsActive:     u.IsActive,
		LastLoginAt:  u.LastLoginAt,
	}
}
