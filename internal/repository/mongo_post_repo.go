package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/writeflow/internal/database"
	"github.com/hitoshi/writeflow/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPostRepo はMongoDBを使用した記事リポジトリ。
type MongoPostRepo struct {
	posts    *mongo.Collection
	comments *mongo.Collection
}

// NewMongoPostRepo はMongoPostRepoを生成する。
// 記事削除時のコメント削除のためcommentsコレクションも保持する。
func NewMongoPostRepo(db *mongo.Database) *MongoPostRepo {
	return &MongoPostRepo{
		posts:    db.Collection(database.PostsCollection),
		comments: db.Collection(database.CommentsCollection),
	}
}

// List は条件に合う記事を作成日時の新しい順に返す。
func (r *MongoPostRepo) List(ctx context.Context, filter PostFilter) ([]*model.Post, error) {
	query := bson.M{}
	if filter.PublishedOnly {
		query["isPublished"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := r.posts.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer cur.Close(ctx)

	posts := []*model.Post{}
	for cur.Next(ctx) {
		var d postDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to decode post document: %w", err)
		}
		posts = append(posts, d.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post documents: %w", err)
	}
	return posts, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *MongoPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	var d postDoc
	err := r.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	return d.toModel(), nil
}

// IncrementViews は$incで閲覧数を1増やし、更新後の記事を返す。見つからない場合はnilを返す。
func (r *MongoPostRepo) IncrementViews(ctx context.Context, id string) (*model.Post, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{"$inc": bson.M{"views": 1}})
}

// Create は記事を作成する。
func (r *MongoPostRepo) Create(ctx context.Context, p *model.Post) error {
	oid, ok := objectID(p.ID)
	if !ok {
		return fmt.Errorf("invalid post ID %q", p.ID)
	}
	if _, err := r.posts.InsertOne(ctx, newPostDoc(oid, p)); err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// Update は記事の内容を置き換える。対象が存在しない場合はfalseを返す。
func (r *MongoPostRepo) Update(ctx context.Context, p *model.Post) (bool, error) {
	oid, ok := objectID(p.ID)
	if !ok {
		return false, nil
	}
	result, err := r.posts.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"title":           p.Title,
		"subTitle":        p.Subtitle,
		"description":     p.Body,
		"category":        string(p.Category),
		"image":           p.Image,
		"isPublished":     p.IsPublished,
		"metaDescription": p.MetaDescription,
		"tags":            nonNilTags(p.Tags),
		"updatedAt":       p.UpdatedAt,
	}})
	if err != nil {
		return false, fmt.Errorf("failed to update post: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// Delete は記事と、その記事に付いた全コメントを削除する。
// ドキュメントストアに外部キーがないため、コメントを先に明示的に削除する。
// コメント削除に失敗した場合は記事を残し、孤立したコメントを作らない。
func (r *MongoPostRepo) Delete(ctx context.Context, id string) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, nil
	}
	if _, err := r.comments.DeleteMany(ctx, bson.M{"blog": oid}); err != nil {
		return false, fmt.Errorf("failed to delete comments of post: %w", err)
	}
	result, err := r.posts.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// TogglePublish は集計パイプライン更新で公開フラグを反転し、更新後の記事を返す。
func (r *MongoPostRepo) TogglePublish(ctx context.Context, id string) (*model.Post, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "isPublished", Value: bson.D{{Key: "$not", Value: bson.A{"$isPublished"}}}},
			{Key: "updatedAt", Value: time.Now().UTC()},
		}}},
	}
	return r.findOneAndUpdate(ctx, id, pipeline)
}

// Counts は全記事数と下書き数を返す。
func (r *MongoPostRepo) Counts(ctx context.Context) (PostCounts, error) {
	total, err := r.posts.CountDocuments(ctx, bson.M{})
	if err != nil {
		return PostCounts{}, fmt.Errorf("failed to count posts: %w", err)
	}
	drafts, err := r.posts.CountDocuments(ctx, bson.M{"isPublished": false})
	if err != nil {
		return PostCounts{}, fmt.Errorf("failed to count draft posts: %w", err)
	}
	return PostCounts{Total: total, Drafts: drafts}, nil
}

func (r *MongoPostRepo) findOneAndUpdate(ctx context.Context, id string, update any) (*model.Post, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	var d postDoc
	err := r.posts.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return d.toModel(), nil
}
