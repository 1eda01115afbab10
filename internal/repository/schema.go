package repository

import (
	"fmt"

	"github.com/hitoshi/taskman/internal/docstore"
)

// コレクション名。SQLバックエンドではテーブル名と一致する。
const (
	CollectionUsers = "users"
	CollectionTasks = "tasks"
)

// users / tasks のフィールド名。
const (
	fieldUsername     = "username"
	fieldPasswordHash = "password_hash"

	fieldUserID      = "user_id"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldStatus      = "status"
	fieldDueDate     = "due_date"
)

// Schema はリポジトリが使用するコレクションとフィールドの定義。
var Schema = docstore.Schema{
	CollectionUsers: {fieldUsername, fieldPasswordHash},
	CollectionTasks: {fieldUserID, fieldTitle, fieldDescription, fieldStatus, fieldDueDate},
}

// MongoIndexes はMongoDBバックエンドで作成するインデックス。
// SQLバックエンドではマイグレーションが同じ制約を作成する。
var MongoIndexes = []docstore.Index{
	{Collection: CollectionUsers, Field: fieldUsername, Unique: true},
	{Collection: CollectionTasks, Field: fieldUserID},
}

// stringValue はストアから読み出した値を文字列に変換する。
// SQLドライバによっては[]byteで返るため両方を扱う。NULLは空文字になる。
func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

// nullableString は空文字をNULLとして保存するための変換を行う。
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
