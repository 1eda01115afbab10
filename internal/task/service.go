// Package task はユーザーごとのタスク管理のドメインロジックを提供する。
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/taskman/internal/docstore"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// Service はタスク管理のサービス層。
// すべての操作は呼び出し元が渡した認証済みユーザーIDで所有者を絞り込む。
type Service struct {
	repo repository.TaskRepository
	now  func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.TaskRepository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// List はユーザーのタスク一覧を、読み出し時点で算出した派生値付きで返す。
func (s *Service) List(ctx context.Context, userID string) ([]model.TaskView, error) {
	tasks, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, mapRepoError("タスク一覧の取得に失敗しました", err)
	}

	now := s.now()
	views := make([]model.TaskView, len(tasks))
	for i, t := range tasks {
		views[i] = present(t, now)
	}
	return views, nil
}

// Create は入力値を検証してタスクを作成し、タスクIDを返す。
func (s *Service) Create(ctx context.Context, userID string, in model.NewTask) (string, error) {
	task, err := ValidateNew(in)
	if err != nil {
		return "", err
	}
	task.UserID = userID

	if err := s.repo.Create(ctx, task); err != nil {
		return "", mapRepoError("タスクの作成に失敗しました", err)
	}

	slog.Info("task created",
		slog.String("task_id", task.ID),
		slog.String("user_id", userID),
	)
	return task.ID, nil
}

// Update はユーザーが所有するタスクを部分更新する。
// 対象が存在しない場合と他ユーザーの所有である場合は、どちらもTASK_NOT_FOUNDを返す。
func (s *Service) Update(ctx context.Context, userID, taskID string, patch model.TaskPatch) error {
	patch, err := ValidatePatch(patch)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateByIDAndUser(ctx, taskID, userID, patch); err != nil {
		return mapRepoError("タスクの更新に失敗しました", err)
	}
	return nil
}

// Delete はユーザーが所有するタスクを削除する。
func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	if err := s.repo.DeleteByIDAndUser(ctx, taskID, userID); err != nil {
		return mapRepoError("タスクの削除に失敗しました", err)
	}

	slog.Info("task deleted",
		slog.String("task_id", taskID),
		slog.String("user_id", userID),
	)
	return nil
}

// mapRepoError はリポジトリのエラーをAPIErrorに変換する。
// 分類できないエラーはラップして返し、ハンドラー層で500として扱われる。
func mapRepoError(msg string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.NewTaskNotFoundError()
	case errors.Is(err, docstore.ErrUnavailable):
		slog.Error(msg, slog.String("error", err.Error()))
		return model.NewStoreUnavailableError()
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}
