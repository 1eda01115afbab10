package task

import (
	"fmt"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// NoDueDateText は期日が未設定または解釈できない場合の表示文字列。
const NoDueDateText = "Due date not given"

// present は読み出し時点の日付から派生値を算出してTaskViewを組み立てる。
func present(task *model.Task, now time.Time) model.TaskView {
	view := model.TaskView{
		Task:          *task,
		DateFormatted: NoDueDateText,
	}

	due, ok := parseDueDate(task.DueDate)
	if !ok {
		return view
	}

	days := remainingDays(due, now)
	view.RemainingDays = &days
	view.DateFormatted = formatDueDate(due)
	return view
}

// remainingDays は今日から期日までの日数を返す。期日を過ぎている場合は負になる。
// 今日の日付はnowのロケーションで決まる。
func remainingDays(due, now time.Time) int {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return int(dueDay.Sub(today).Hours() / 24)
}

// formatDueDate は "5th March 2025" 形式で期日を表す。
func formatDueDate(due time.Time) string {
	return fmt.Sprintf("%d%s %s %d", due.Day(), ordinalSuffix(due.Day()), due.Month(), due.Year())
}

func ordinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
