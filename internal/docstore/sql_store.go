package docstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// SQLStore はリレーショナルDBをドキュメントストアとして扱うStore実装。
// コレクションはテーブル、フィールドはカラムに対応する。
// IDはUUID文字列をアプリケーション側で採番する。
type SQLStore struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
	schema  Schema
	timeout time.Duration
	newID   func() string
}

// NewSQLStore はSQLStoreを生成する。
// プレースホルダ形式はドライバ名から決定する（postgresは$n、それ以外は?）。
// timeoutが正の場合、各操作にその時間のタイムアウトを設定する。
func NewSQLStore(db *sqlx.DB, schema Schema, timeout time.Duration) *SQLStore {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if db.DriverName() == "postgres" {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}

	return &SQLStore{
		db:      db,
		builder: builder,
		schema:  schema,
		timeout: timeout,
		newID:   uuid.NewString,
	}
}

// Insert はレコードを追加し、採番したIDを返す。
func (s *SQLStore) Insert(ctx context.Context, collection string, rec Record) (string, error) {
	if err := s.schema.check(collection, rec); err != nil {
		return "", err
	}

	id := s.newID()
	values := make(map[string]any, len(rec)+1)
	for k, v := range rec {
		values[k] = v
	}
	values[IDField] = id

	query, args, err := s.builder.Insert(collection).SetMap(values).ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build insert query: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, classifySQLError(err))
	}

	return id, nil
}

// Find はフィルタに一致するレコードを返す。一致しない場合は空スライスを返す。
func (s *SQLStore) Find(ctx context.Context, collection string, filter Filter) ([]Record, error) {
	fields, err := s.schema.fields(collection)
	if err != nil {
		return nil, err
	}
	if err := s.schema.check(collection, filter); err != nil {
		return nil, err
	}

	qb := s.builder.Select(fields...).From(collection)
	if len(filter) > 0 {
		qb = qb.Where(sq.Eq(filter))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, classifySQLError(err))
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		row := make(map[string]any, len(fields))
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", collection, err)
		}
		records = append(records, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", collection, classifySQLError(err))
	}

	return records, nil
}

// UpdateOne はフィルタに一致する最大1件のレコードを更新し、一致件数を返す。
// 対象行はサブクエリ（LIMIT 1）で1件に絞り込む。
func (s *SQLStore) UpdateOne(ctx context.Context, collection string, filter Filter, patch Record) (int64, error) {
	if len(patch) == 0 {
		return 0, ErrEmptyPatch
	}
	if err := s.schema.checkPatch(collection, patch); err != nil {
		return 0, err
	}
	if err := s.schema.check(collection, filter); err != nil {
		return 0, err
	}

	query, args, err := s.builder.Update(collection).
		SetMap(patch).
		Where(s.oneOf(collection, filter)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build update query: %w", err)
	}

	return s.exec(ctx, collection, query, args)
}

// DeleteOne はフィルタに一致する最大1件のレコードを削除し、削除件数を返す。
func (s *SQLStore) DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error) {
	if err := s.schema.check(collection, filter); err != nil {
		return 0, err
	}

	query, args, err := s.builder.Delete(collection).
		Where(s.oneOf(collection, filter)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}

	return s.exec(ctx, collection, query, args)
}

// PingContext はDB接続を確認する。ヘルスチェックで使用する。
func (s *SQLStore) PingContext(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return classifySQLError(err)
	}
	return nil
}

// oneOf はフィルタに一致する先頭1行のIDに絞り込む条件を返す。
func (s *SQLStore) oneOf(collection string, filter Filter) sq.Sqlizer {
	sub := sq.Select(IDField).From(collection).Limit(1)
	if len(filter) > 0 {
		sub = sub.Where(sq.Eq(filter))
	}
	return sq.Expr(IDField+" IN (?)", sub)
}

func (s *SQLStore) exec(ctx context.Context, collection, query string, args []any) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", collection, classifySQLError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// normalizeRow はドライバ依存の値をドキュメント表現に揃える。
// TEXTカラムが[]byteで返るドライバがあるため文字列に変換する。
func normalizeRow(row map[string]any) Record {
	rec := make(Record, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			rec[k] = string(b)
			continue
		}
		rec[k] = v
	}
	return rec
}

// classifySQLError はドライバのエラーをErrDuplicate/ErrUnavailableに分類してラップする。
// 分類できないエラーはそのまま返す。
func classifySQLError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505": // unique_violation
			return fmt.Errorf("%w: %w", ErrDuplicate, err)
		case pqErr.Code.Class() == "08", // connection_exception
			pqErr.Code.Class() == "57": // operator_intervention (admin_shutdown等)
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %w", ErrDuplicate, err)
		case liteErr.Code == sqlite3.ErrBusy, liteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return err
}

// withTimeout はtimeoutが正の場合にタイムアウト付きのコンテキストを返す。
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// compile-time interface check
var _ Store = (*SQLStore)(nil)
