// Package auth は管理者ログインとトークン認証を提供する。
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials はメールアドレスまたはパスワードが一致しないことを示す。
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	AdminEmail   string
	PasswordHash []byte // bcryptハッシュ
}

// LoginResult はログイン成功時に返すトークン情報。
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
}

// Service は管理者認証に関するビジネスロジックを提供する。
// 管理者は設定で与えられた1アカウントのみ。
type Service struct {
	issuer *TokenIssuer
	config ServiceConfig
}

// NewService はServiceを生成する。
func NewService(issuer *TokenIssuer, config ServiceConfig) *Service {
	return &Service{
		issuer: issuer,
		config: config,
	}
}

// HashPassword は平文パスワードからbcryptハッシュを生成する。
// ADMIN_PASSWORDのみが設定されている場合に起動時に使用する。
func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// Login は認証情報を照合し、成功した場合はトークンを発行する。
// メールアドレスとパスワードのどちらが誤っていても同じエラーを返す。
func (s *Service) Login(email, password string) (*LoginResult, error) {
	emailMatch := strings.EqualFold(strings.TrimSpace(email), s.config.AdminEmail)

	// メールアドレスが不一致でもbcrypt比較は必ず行う
	pwErr := bcrypt.CompareHashAndPassword(s.config.PasswordHash, []byte(password))
	if !emailMatch || pwErr != nil {
		slog.Warn("admin login failed", slog.String("email", email))
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.issuer.Issue(s.config.AdminEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to issue admin token: %w", err)
	}

	slog.Info("admin logged in", slog.String("admin_email", s.config.AdminEmail))
	return &LoginResult{Token: token, ExpiresAt: expiresAt}, nil
}

// Verify はトークンを検証し、管理者のemailを返す。
func (s *Service) Verify(token string) (string, error) {
	return s.issuer.Verify(token)
}
