// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/taskman/internal/model"
)

// ErrNotFound は所有者スコープの更新・削除で対象が1件も一致しなかったことを表す。
// 「存在しない」と「他ユーザーの所有」は区別しない。
var ErrNotFound = errors.New("repository: not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDをuser.IDに設定する。
	// ユーザー名が重複する場合はdocstore.ErrDuplicateをラップしたエラーを返す。
	Create(ctx context.Context, user *model.User) error
}

// TaskRepository はタスクデータの永続化インターフェース。
// すべての操作は所有者のユーザーIDで絞り込まれる。
type TaskRepository interface {
	// ListByUser はユーザーが所有するタスクをストアの自然順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Task, error)

	// Create はタスクを作成し、採番されたIDをtask.IDに設定する。
	Create(ctx context.Context, task *model.Task) error

	// UpdateByIDAndUser はIDと所有者の両方が一致するタスクにpatchを適用する。
	// 一致するタスクがない場合はErrNotFoundを返す。
	UpdateByIDAndUser(ctx context.Context, id, userID string, patch model.TaskPatch) error

	// DeleteByIDAndUser はIDと所有者の両方が一致するタスクを削除する。
	// 一致するタスクがない場合はErrNotFoundを返す。
	DeleteByIDAndUser(ctx context.Context, id, userID string) error
}
