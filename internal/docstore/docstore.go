// Package docstore はコレクション単位のCRUD-by-filter操作を提供する永続化層。
// SQL(PostgreSQL/SQLite)とMongoDBの実装を持ち、上位層はStoreインターフェースのみに依存する。
package docstore

import (
	"context"
	"errors"
	"fmt"
)

// IDField はすべてのコレクションに共通する主キーのフィールド名。
const IDField = "id"

// Record は1件のドキュメントを表す。キーはフィールド名。
type Record map[string]any

// Filter はフィールドの等価条件の論理積を表す。
type Filter map[string]any

// Store はドキュメントストアの操作を定義する。
type Store interface {
	// Insert はレコードを追加し、ストアが採番したIDを返す。
	Insert(ctx context.Context, collection string, rec Record) (string, error)

	// Find はフィルタに一致するレコードをストアの自然順で返す。
	Find(ctx context.Context, collection string, filter Filter) ([]Record, error)

	// UpdateOne はフィルタに一致する最大1件のレコードにpatchを適用し、一致件数を返す。
	UpdateOne(ctx context.Context, collection string, filter Filter, patch Record) (int64, error)

	// DeleteOne はフィルタに一致する最大1件のレコードを削除し、削除件数を返す。
	DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error)
}

var (
	// ErrUnavailable は接続断・タイムアウトなど再試行で回復し得る障害を表す。
	ErrUnavailable = errors.New("docstore: store unavailable")
	// ErrDuplicate は一意制約違反を表す。
	ErrDuplicate = errors.New("docstore: duplicate key")
	// ErrUnknownCollection はスキーマに存在しないコレクションが指定されたことを表す。
	ErrUnknownCollection = errors.New("docstore: unknown collection")
	// ErrUnknownField はスキーマに存在しないフィールドが指定されたことを表す。
	ErrUnknownField = errors.New("docstore: unknown field")
	// ErrEmptyPatch は更新内容が空であることを表す。
	ErrEmptyPatch = errors.New("docstore: empty patch")
)

// Schema はコレクション名と、ID以外のフィールド名の対応を表す。
// フィールド名はSQL実装ではカラム名としてそのまま使用されるため、
// 外部入力をキーにしたRecordやFilterはスキーマで検証してから渡される。
type Schema map[string][]string

// fields はID付きのフィールド一覧を返す。
func (s Schema) fields(collection string) ([]string, error) {
	cols, ok := s[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return append([]string{IDField}, cols...), nil
}

// checkPatch は更新内容のキーを検証する。IDは更新できない。
func (s Schema) checkPatch(collection string, patch Record) error {
	if _, ok := patch[IDField]; ok {
		return fmt.Errorf("%w: %s.%s is immutable", ErrUnknownField, collection, IDField)
	}
	return s.check(collection, patch)
}

// check はキーがすべてスキーマ上のフィールドであることを検証する。
func (s Schema) check(collection string, keys map[string]any) error {
	fields, err := s.fields(collection)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f] = struct{}{}
	}
	for k := range keys {
		if _, ok := known[k]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, collection, k)
		}
	}
	return nil
}
