package handler

import (
	"context"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/task"
)

// TaskServiceAdapter は task.Service を TaskServiceInterface に適合させるアダプタ。
type TaskServiceAdapter struct {
	svc *task.Service
}

// NewTaskServiceAdapter はTaskServiceAdapterを生成する。
func NewTaskServiceAdapter(svc *task.Service) *TaskServiceAdapter {
	return &TaskServiceAdapter{svc: svc}
}

// ListTasks はタスク一覧を取得し、レスポンス形式に変換する。
func (a *TaskServiceAdapter) ListTasks(ctx context.Context, userID string) ([]taskResponse, error) {
	views, err := a.svc.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]taskResponse, 0, len(views))
	for _, v := range views {
		result = append(result, toTaskResponse(v))
	}
	return result, nil
}

// CreateTask はタスクを作成する。
func (a *TaskServiceAdapter) CreateTask(ctx context.Context, userID string, in model.NewTask) (string, error) {
	return a.svc.Create(ctx, userID, in)
}

// UpdateTask はタスクを部分更新する。
func (a *TaskServiceAdapter) UpdateTask(ctx context.Context, userID, taskID string, patch model.TaskPatch) error {
	return a.svc.Update(ctx, userID, taskID, patch)
}

// DeleteTask はタスクを削除する。
func (a *TaskServiceAdapter) DeleteTask(ctx context.Context, userID, taskID string) error {
	return a.svc.Delete(ctx, userID, taskID)
}

// toTaskResponse はTaskViewをレスポンス形式に変換する。
// 期日が空の場合はnullとして返す。
func toTaskResponse(v model.TaskView) taskResponse {
	resp := taskResponse{
		ID:            v.ID,
		Title:         v.Title,
		Description:   v.Description,
		Status:        string(v.Status),
		UserID:        v.UserID,
		DateFormatted: v.DateFormatted,
		RemainingDays: v.RemainingDays,
	}
	if v.DueDate != "" {
		due := v.DueDate
		resp.DueDate = &due
	}
	return resp
}

// コンパイル時にインターフェース準拠を検証する
var (
	_ TaskServiceInterface       = (*TaskServiceAdapter)(nil)
	_ CredentialServiceInterface = (*auth.Service)(nil)
	_ TokenIssuerInterface       = (*auth.TokenService)(nil)
)
