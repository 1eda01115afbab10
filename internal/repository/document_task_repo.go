package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/taskman/internal/docstore"
	"github.com/hitoshi/taskman/internal/model"
)

// DocumentTaskRepo はdocstore.Storeを使用したタスクリポジトリ。
// 更新・削除は常にIDと所有者の両方で絞り込む。
type DocumentTaskRepo struct {
	store docstore.Store
}

// NewDocumentTaskRepo はDocumentTaskRepoを生成する。
func NewDocumentTaskRepo(store docstore.Store) *DocumentTaskRepo {
	return &DocumentTaskRepo{store: store}
}

// ListByUser はユーザーが所有するタスクを返す。該当がない場合は空スライスを返す。
func (r *DocumentTaskRepo) ListByUser(ctx context.Context, userID string) ([]*model.Task, error) {
	records, err := r.store.Find(ctx, CollectionTasks, docstore.Filter{fieldUserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*model.Task, 0, len(records))
	for _, rec := range records {
		tasks = append(tasks, taskFromRecord(rec))
	}
	return tasks, nil
}

// Create はタスクを作成する。
func (r *DocumentTaskRepo) Create(ctx context.Context, task *model.Task) error {
	id, err := r.store.Insert(ctx, CollectionTasks, docstore.Record{
		fieldUserID:      task.UserID,
		fieldTitle:       task.Title,
		fieldDescription: task.Description,
		fieldStatus:      string(task.Status),
		fieldDueDate:     nullableString(task.DueDate),
	})
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	task.ID = id
	return nil
}

// UpdateByIDAndUser はIDと所有者が一致するタスクを部分更新する。
// patchが空の場合は更新せず、対象の存在確認のみ行う。
func (r *DocumentTaskRepo) UpdateByIDAndUser(ctx context.Context, id, userID string, patch model.TaskPatch) error {
	filter := ownerFilter(id, userID)

	if patch.IsEmpty() {
		records, err := r.store.Find(ctx, CollectionTasks, filter)
		if err != nil {
			return fmt.Errorf("failed to find task: %w", err)
		}
		if len(records) == 0 {
			return ErrNotFound
		}
		return nil
	}

	matched, err := r.store.UpdateOne(ctx, CollectionTasks, filter, patchRecord(patch))
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByIDAndUser はIDと所有者が一致するタスクを削除する。
func (r *DocumentTaskRepo) DeleteByIDAndUser(ctx context.Context, id, userID string) error {
	deleted, err := r.store.DeleteOne(ctx, CollectionTasks, ownerFilter(id, userID))
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func ownerFilter(id, userID string) docstore.Filter {
	return docstore.Filter{
		docstore.IDField: id,
		fieldUserID:      userID,
	}
}

// patchRecord はnilでないフィールドのみを更新内容に含める。
func patchRecord(patch model.TaskPatch) docstore.Record {
	rec := docstore.Record{}
	if patch.Title != nil {
		rec[fieldTitle] = *patch.Title
	}
	if patch.Description != nil {
		rec[fieldDescription] = *patch.Description
	}
	if patch.Status != nil {
		rec[fieldStatus] = *patch.Status
	}
	if patch.DueDate != nil {
		rec[fieldDueDate] = *patch.DueDate
	}
	return rec
}

func taskFromRecord(rec docstore.Record) *model.Task {
	return &model.Task{
		ID:          stringValue(rec[docstore.IDField]),
		UserID:      stringValue(rec[fieldUserID]),
		Title:       stringValue(rec[fieldTitle]),
		Description: stringValue(rec[fieldDescription]),
		Status:      model.TaskStatus(stringValue(rec[fieldStatus])),
		DueDate:     stringValue(rec[fieldDueDate]),
	}
}
