package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	ListTasks(ctx context.Context, userID string) ([]taskResponse, error)
	CreateTask(ctx context.Context, userID string, in model.NewTask) (string, error)
	UpdateTask(ctx context.Context, userID, taskID string, patch model.TaskPatch) error
	DeleteTask(ctx context.Context, userID, taskID string) error
}

// taskResponse はタスク一覧の1件分のレスポンス。
// フィールド名は既存クライアントとの互換性を維持する。
type taskResponse struct {
	ID            string  `json:"_id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	DueDate       *string `json:"dueDate"`
	UserID        string  `json:"user_id"`
	DateFormatted string  `json:"dateFormatted"`
	RemainingDays *int    `json:"remaining_days"`
}

// createTaskRequest はタスク作成のリクエストボディ。
type createTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	DueDate     *string `json:"dueDate"`
}

// updateTaskRequest はタスク更新のリクエストボディ。
// 含まれないフィールドは変更しない。所有者は更新できない。
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	DueDate     *string `json:"dueDate"`
}

// createTaskResponse はタスク作成成功時のレスポンス。
type createTaskResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// TaskHandler はタスク関連のHTTPハンドラー。
// すべての操作は認証済みユーザーのタスクに限定される。
type TaskHandler struct {
	service TaskServiceInterface
	metrics metrics.MetricsCollector
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface, collector metrics.MetricsCollector) *TaskHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &TaskHandler{service: service, metrics: collector}
}

// ListTasks は認証ユーザーのタスク一覧を返す。
// GET /tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), userID)
	h.metrics.RecordTaskOperation("list", operationResult(err))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if tasks == nil {
		tasks = []taskResponse{}
	}

	writeJSON(w, http.StatusOK, tasks)
}

// CreateTask はタスクを作成する。
// POST /tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createTaskRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		h.metrics.RecordTaskOperation("create", "invalid")
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	id, err := h.service.CreateTask(r.Context(), userID, model.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	h.metrics.RecordTaskOperation("create", operationResult(err))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createTaskResponse{Message: "Task created successfully", ID: id})
}

// UpdateTask はタスクを部分更新する。
// PUT /tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		h.metrics.RecordTaskOperation("update", "invalid")
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	err := h.service.UpdateTask(r.Context(), userID, chi.URLParam(r, "id"), model.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	h.metrics.RecordTaskOperation("update", operationResult(err))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Task updated successfully"})
}

// DeleteTask はタスクを削除する。
// DELETE /tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	err := h.service.DeleteTask(r.Context(), userID, chi.URLParam(r, "id"))
	h.metrics.RecordTaskOperation("delete", operationResult(err))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Task deleted successfully"})
}

// requireUserID はコンテキストから認証ユーザーIDを取り出す。
// 取得できない場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError("Missing Authorization Header"))
		return "", false
	}
	return userID, true
}
