package task

import (
	"strings"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// ValidateNew はタスク作成の入力値を検証し、正規化したタスクを返す。
// 規則は title, description, status, dueDate の順に評価し、最初の違反を返す。
// 返すタスクのIDとUserIDは未設定。
func ValidateNew(in model.NewTask) (*model.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, model.NewMissingFieldError("Title")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, model.NewMissingFieldError("Description")
	}

	status, ok := model.ParseTaskStatus(in.Status)
	if !ok {
		return nil, model.NewInvalidStatusError()
	}

	if in.DueDate == nil || strings.TrimSpace(*in.DueDate) == "" {
		return nil, model.NewDueDateRequiredError()
	}
	due, ok := parseDueDate(*in.DueDate)
	if !ok {
		return nil, model.NewInvalidDueDateError()
	}

	return &model.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		DueDate:     due.Format(model.DueDateLayout),
	}, nil
}

// ValidatePatch は部分更新の内容を検証する。
// statusが含まれる場合のみ値を検証して正規化し、他のフィールドはそのまま返す。
func ValidatePatch(patch model.TaskPatch) (model.TaskPatch, error) {
	if patch.Status == nil {
		return patch, nil
	}

	status, ok := model.ParseTaskStatus(*patch.Status)
	if !ok {
		return model.TaskPatch{}, model.NewInvalidStatusError()
	}
	canonical := string(status)
	patch.Status = &canonical
	return patch, nil
}

// parseDueDate は先頭のYYYY-MM-DD部分を日付として解釈する。
// 続く時刻やタイムゾーンは無視する。
func parseDueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(model.DueDateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(model.DueDateLayout, s[:len(model.DueDateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
