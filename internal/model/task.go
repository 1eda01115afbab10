package model

import "strings"

// DueDateLayout は期日の保存形式。
const DueDateLayout = "2006-01-02"

// TaskStatus はタスクの進捗状態を表す。
type TaskStatus string

const (
	TaskStatusToDo       TaskStatus = "to do"
	TaskStatusInProgress TaskStatus = "in progress"
	TaskStatusDone       TaskStatus = "done"
)

// ParseTaskStatus は大文字小文字を区別せずにステータス文字列を解釈する。
// 前後の空白は無視する。該当しない場合はfalseを返す。
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch TaskStatus(strings.ToLower(strings.TrimSpace(s))) {
	case TaskStatusToDo:
		return TaskStatusToDo, true
	case TaskStatusInProgress:
		return TaskStatusInProgress, true
	case TaskStatusDone:
		return TaskStatusDone, true
	default:
		return "", false
	}
}

// Task はユーザーが所有するToDo項目を表す。
// UserIDは作成時に認証済みユーザーのIDが設定され、以後変更されない。
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Status      TaskStatus
	DueDate     string // YYYY-MM-DD。更新経由では未検証の値が入り得る
}

// NewTask はタスク作成リクエストの入力値。
// 未指定のフィールドは空文字として扱う。
type NewTask struct {
	Title       string
	Description string
	Status      string
	DueDate     *string
}

// TaskPatch はタスクの部分更新内容。nilのフィールドは更新しない。
// 所有者は更新対象に含まれない。
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *string
	DueDate     *string
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.DueDate == nil
}

// TaskView は一覧表示用に読み出し時点で算出した値を付与したタスク。
// 算出値は保存しない。
type TaskView struct {
	Task

	// RemainingDays は期日までの残り日数。期日が未設定・解釈不能な場合はnil。
	RemainingDays *int
	// DateFormatted は "5th March 2025" 形式の期日表記。
	DateFormatted string
}
