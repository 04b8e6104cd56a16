package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/writeflow/internal/database"
	"github.com/hitoshi/writeflow/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSubscriberRepo はMongoDBを使用した購読者リポジトリ。
type MongoSubscriberRepo struct {
	subscribers *mongo.Collection
}

// NewMongoSubscriberRepo はMongoSubscriberRepoを生成する。
func NewMongoSubscriberRepo(db *mongo.Database) *MongoSubscriberRepo {
	return &MongoSubscriberRepo{subscribers: db.Collection(database.SubscribersCollection)}
}

// CreateIfAbsent はemailをキーにupsertし、新規作成された場合のみtrueを返す。
// 並行する同一emailの登録はemailの一意インデックスにより重複キーエラーとなり、既存扱いにする。
func (r *MongoSubscriberRepo) CreateIfAbsent(ctx context.Context, s *model.Subscriber) (bool, error) {
	oid, ok := objectID(s.ID)
	if !ok {
		return false, fmt.Errorf("invalid subscriber ID %q", s.ID)
	}

	result, err := r.subscribers.UpdateOne(ctx,
		bson.M{"email": s.Email},
		bson.M{"$setOnInsert": bson.M{"_id": oid, "email": s.Email, "createdAt": s.CreatedAt}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to upsert subscriber: %w", err)
	}
	return result.UpsertedCount > 0, nil
}

// List は全購読者を登録日時の新しい順に返す。
func (r *MongoSubscriberRepo) List(ctx context.Context) ([]*model.Subscriber, error) {
	cur, err := r.subscribers.Find(ctx, bson.M{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer cur.Close(ctx)

	var docs []subscriberDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode subscriber documents: %w", err)
	}

	subs := make([]*model.Subscriber, 0, len(docs))
	for i := range docs {
		subs = append(subs, docs[i].toModel())
	}
	return subs, nil
}

// ListEmails は全購読者のemailを登録順に返す。
func (r *MongoSubscriberRepo) ListEmails(ctx context.Context) ([]string, error) {
	cur, err := r.subscribers.Find(ctx, bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: 1}}).
			SetProjection(bson.M{"email": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriber emails: %w", err)
	}
	defer cur.Close(ctx)

	var emails []string
	for cur.Next(ctx) {
		var d struct {
			Email string `bson:"email"`
		}
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to decode subscriber email: %w", err)
		}
		emails = append(emails, d.Email)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriber emails: %w", err)
	}
	return emails, nil
}

// Delete は指定IDの購読者を削除する。対象が存在しない場合はfalseを返す。
func (r *MongoSubscriberRepo) Delete(ctx context.Context, id string) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, nil
	}
	result, err := r.subscribers.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("failed to delete subscriber: %w", err)
	}
	return result.DeletedCount > 0, nil
}
