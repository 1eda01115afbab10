package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/taskman/internal/docstore"
	"github.com/hitoshi/taskman/internal/model"
)

// DocumentUserRepo はdocstore.Storeを使用したユーザーリポジトリ。
type DocumentUserRepo struct {
	store docstore.Store
}

// NewDocumentUserRepo はDocumentUserRepoを生成する。
func NewDocumentUserRepo(store docstore.Store) *DocumentUserRepo {
	return &DocumentUserRepo{store: store}
}

// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
// 一意インデックスにより複数件は存在しない前提だが、存在した場合は先頭を返す。
func (r *DocumentUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	records, err := r.store.Find(ctx, CollectionUsers, docstore.Filter{fieldUsername: username})
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rec := records[0]
	return &model.User{
		ID:           stringValue(rec[docstore.IDField]),
		Username:     stringValue(rec[fieldUsername]),
		PasswordHash: stringValue(rec[fieldPasswordHash]),
	}, nil
}

// Create はユーザーを作成する。
func (r *DocumentUserRepo) Create(ctx context.Context, user *model.User) error {
	id, err := r.store.Insert(ctx, CollectionUsers, docstore.Record{
		fieldUsername:     user.Username,
		fieldPasswordHash: user.PasswordHash,
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.ID = id
	return nil
}
