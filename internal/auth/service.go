// Package auth はユーザー資格情報の管理とJWTの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/taskman/internal/docstore"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
const maxPasswordBytes = 72

// dummyPassword はユーザー不在時の比較に使うハッシュの元になる値。
const dummyPassword = "taskman-dummy-password"

// ServiceConfig は資格情報サービスの設定。
type ServiceConfig struct {
	BcryptCost int
}

// Service はユーザー登録とパスワード検証を提供する。
type Service struct {
	userRepo  repository.UserRepository
	cost      int
	dummyHash []byte
}

// NewService はServiceを生成する。
// BcryptCostがbcryptの有効範囲外の場合は範囲内に丸める。
func NewService(userRepo repository.UserRepository, config ServiceConfig) *Service {
	cost := clampCost(config.BcryptCost)
	// 有効範囲のコストではエラーにならない
	dummyHash, _ := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)

	return &Service{
		userRepo:  userRepo,
		cost:      cost,
		dummyHash: dummyHash,
	}
}

// Register はユーザーを登録し、採番されたユーザーIDを返す。
// パスワードはbcryptでハッシュ化して保存し、平文は保持しない。
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", model.NewMissingFieldError("Username")
	}
	if strings.TrimSpace(password) == "" {
		return "", model.NewMissingFieldError("Password")
	}
	if len(password) > maxPasswordBytes {
		return "", model.NewPasswordTooLongError()
	}

	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return "", storeError("failed to check username", err)
	}
	if existing != nil {
		return "", model.NewDuplicateUserError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// 事前確認と挿入の間に同名ユーザーが作成された場合は一意制約で検出される
		if errors.Is(err, docstore.ErrDuplicate) {
			return "", model.NewDuplicateUserError()
		}
		return "", storeError("failed to create user", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return user.ID, nil
}

// Verify はユーザー名とパスワードを検証し、一致した場合のみユーザーIDを返す。
// ユーザー不在とパスワード不一致は呼び出し元から区別できない。
// errはストア障害の場合のみ返す。
func (s *Service) Verify(ctx context.Context, username, password string) (string, bool, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return "", false, storeError("failed to find user", err)
	}

	if user == nil {
		// 不在時もハッシュ比較を行い、応答時間の差を抑える
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		slog.Warn("login failed", slog.String("username", username))
		return "", false, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login failed", slog.String("username", username))
		return "", false, nil
	}

	return user.ID, true, nil
}

func clampCost(cost int) int {
	switch {
	case cost < bcrypt.MinCost:
		return bcrypt.DefaultCost
	case cost > bcrypt.MaxCost:
		return bcrypt.MaxCost
	default:
		return cost
	}
}

// storeError はストア障害をAPIErrorに変換する。それ以外はラップして返す。
func storeError(msg string, err error) error {
	if errors.Is(err, docstore.ErrUnavailable) {
		slog.Error(msg, slog.String("error", err.Error()))
		return model.NewStoreUnavailableError()
	}
	return fmt.Errorf("%s: %w", msg, err)
}
