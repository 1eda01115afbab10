package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoIDField = "_id"

// Index はコレクションの単一フィールドインデックス定義。
type Index struct {
	Collection string
	Field      string
	Unique     bool
}

// MongoStore はMongoDBを使用したStore実装。
// IDはObjectIDの16進表現で、IDField("id")と"_id"を相互に変換する。
type MongoStore struct {
	db      *mongo.Database
	schema  Schema
	timeout time.Duration
}

// ConnectMongo はMongoDBに接続し、指定データベースを使用するMongoStoreを返す。
// mongo.Connectは接続を確立しないため、疎通確認にはPingContextを使用すること。
func ConnectMongo(ctx context.Context, uri, database string, schema Schema, timeout time.Duration) (*MongoStore, error) {
	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetServerSelectionTimeout(timeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", classifyMongoError(err))
	}

	return NewMongoStore(client.Database(database), schema, timeout), nil
}

// NewMongoStore は接続済みのデータベースからMongoStoreを生成する。
func NewMongoStore(db *mongo.Database, schema Schema, timeout time.Duration) *MongoStore {
	return &MongoStore{
		db:      db,
		schema:  schema,
		timeout: timeout,
	}
}

// Insert はドキュメントを追加し、採番されたObjectIDの16進表現を返す。
func (s *MongoStore) Insert(ctx context.Context, collection string, rec Record) (string, error) {
	if err := s.schema.check(collection, rec); err != nil {
		return "", err
	}

	doc := bson.M{}
	for k, v := range rec {
		if k == IDField {
			continue
		}
		doc[k] = v
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, classifyMongoError(err))
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// Find はフィルタに一致するドキュメントを返す。
func (s *MongoStore) Find(ctx context.Context, collection string, filter Filter) ([]Record, error) {
	if err := s.schema.check(collection, filter); err != nil {
		return nil, err
	}

	mf, ok := toMongoFilter(filter)
	if !ok {
		return []Record{}, nil
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.db.Collection(collection).Find(ctx, mf)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, classifyMongoError(err))
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode %s documents: %w", collection, classifyMongoError(err))
	}

	records := make([]Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, fromMongoDoc(d))
	}
	return records, nil
}

// UpdateOne はフィルタに一致する最大1件に$setを適用し、一致件数を返す。
// 値が変わらない更新も一致件数に含める。
func (s *MongoStore) UpdateOne(ctx context.Context, collection string, filter Filter, patch Record) (int64, error) {
	if len(patch) == 0 {
		return 0, ErrEmptyPatch
	}
	if err := s.schema.checkPatch(collection, patch); err != nil {
		return 0, err
	}
	if err := s.schema.check(collection, filter); err != nil {
		return 0, err
	}

	mf, ok := toMongoFilter(filter)
	if !ok {
		return 0, nil
	}

	set := bson.M{}
	for k, v := range patch {
		set[k] = v
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.Collection(collection).UpdateOne(ctx, mf, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", collection, classifyMongoError(err))
	}
	return res.MatchedCount, nil
}

// DeleteOne はフィルタに一致する最大1件を削除し、削除件数を返す。
func (s *MongoStore) DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error) {
	if err := s.schema.check(collection, filter); err != nil {
		return 0, err
	}

	mf, ok := toMongoFilter(filter)
	if !ok {
		return 0, nil
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.Collection(collection).DeleteOne(ctx, mf)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", collection, classifyMongoError(err))
	}
	return res.DeletedCount, nil
}

// EnsureIndexes はインデックスを作成する。既存の同一定義は無視されるため冪等。
func (s *MongoStore) EnsureIndexes(ctx context.Context, indexes []Index) error {
	for _, idx := range indexes {
		model := mongo.IndexModel{
			Keys:    bson.D{{Key: idx.Field, Value: 1}},
			Options: options.Index().SetUnique(idx.Unique),
		}
		if _, err := s.db.Collection(idx.Collection).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index on %s.%s: %w", idx.Collection, idx.Field, classifyMongoError(err))
		}
	}
	return nil
}

// PingContext はプライマリへの疎通を確認する。
func (s *MongoStore) PingContext(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.Client().Ping(ctx, readpref.Primary()); err != nil {
		return classifyMongoError(err)
	}
	return nil
}

// Close はクライアント接続を切断する。
func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// toMongoFilter はFilterをMongoDBのクエリに変換する。
// IDがObjectIDとして解釈できない場合は何にも一致しないためfalseを返す。
func toMongoFilter(filter Filter) (bson.M, bool) {
	mf := bson.M{}
	for k, v := range filter {
		if k != IDField {
			mf[k] = v
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		oid, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return nil, false
		}
		mf[mongoIDField] = oid
	}
	return mf, true
}

func fromMongoDoc(doc bson.M) Record {
	rec := make(Record, len(doc))
	for k, v := range doc {
		if k != mongoIDField {
			rec[k] = v
			continue
		}
		if oid, ok := v.(primitive.ObjectID); ok {
			rec[IDField] = oid.Hex()
		} else {
			rec[IDField] = fmt.Sprint(v)
		}
	}
	return rec
}

// classifyMongoError はドライバのエラーをErrDuplicate/ErrUnavailableに分類してラップする。
func classifyMongoError(err error) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	case mongo.IsTimeout(err),
		mongo.IsNetworkError(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return err
	}
}

// compile-time interface check
var _ Store = (*MongoStore)(nil)
