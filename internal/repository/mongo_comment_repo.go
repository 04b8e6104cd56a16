package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/writeflow/internal/database"
	"github.com/hitoshi/writeflow/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCommentRepo はMongoDBを使用したコメントリポジトリ。
type MongoCommentRepo struct {
	comments *mongo.Collection
}

// NewMongoCommentRepo はMongoCommentRepoを生成する。
func NewMongoCommentRepo(db *mongo.Database) *MongoCommentRepo {
	return &MongoCommentRepo{comments: db.Collection(database.CommentsCollection)}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

// ListApprovedByPost は指定記事の承認済みコメントを新しい順に返す。
func (r *MongoCommentRepo) ListApprovedByPost(ctx context.Context, postID string) ([]*model.Comment, error) {
	oid, ok := objectID(postID)
	if !ok {
		return []*model.Comment{}, nil
	}

	cur, err := r.comments.Find(ctx,
		bson.M{"blog": oid, "isApproved": true},
		options.Find().SetSort(newestFirst),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved comments: %w", err)
	}
	defer cur.Close(ctx)

	comments := []*model.Comment{}
	for cur.Next(ctx) {
		var d commentDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to decode comment document: %w", err)
		}
		comments = append(comments, d.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comment documents: %w", err)
	}
	return comments, nil
}

// ListAllWithPost は$lookupで記事タイトルを結合し、全コメントを新しい順に返す。
func (r *MongoCommentRepo) ListAllWithPost(ctx context.Context) ([]*model.CommentWithPost, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: newestFirst}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: database.PostsCollection},
			{Key: "localField", Value: "blog"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "post"},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "postTitle", Value: bson.D{{Key: "$ifNull", Value: bson.A{
				bson.D{{Key: "$first", Value: "$post.title"}}, "",
			}}}},
		}}},
		{{Key: "$unset", Value: "post"}},
	}

	cur, err := r.comments.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer cur.Close(ctx)

	comments := []*model.CommentWithPost{}
	for cur.Next(ctx) {
		var d commentDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to decode comment document: %w", err)
		}
		comments = append(comments, &model.CommentWithPost{Comment: *d.toModel(), PostTitle: d.PostTitle})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comment documents: %w", err)
	}
	return comments, nil
}

// Create はコメントを作成する。
func (r *MongoCommentRepo) Create(ctx context.Context, c *model.Comment) error {
	oid, ok := objectID(c.ID)
	if !ok {
		return fmt.Errorf("invalid comment ID %q", c.ID)
	}
	postOID, ok := objectID(c.PostID)
	if !ok {
		return fmt.Errorf("invalid post ID %q", c.PostID)
	}

	_, err := r.comments.InsertOne(ctx, &commentDoc{
		ID:         oid,
		Blog:       postOID,
		Name:       c.Name,
		Content:    c.Content,
		IsApproved: c.IsApproved,
		CreatedAt:  c.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// Approve はコメントを承認済みにし、更新後のコメントを返す。見つからない場合はnilを返す。
func (r *MongoCommentRepo) Approve(ctx context.Context, id string) (*model.Comment, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	var d commentDoc
	err := r.comments.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"isApproved": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to approve comment: %w", err)
	}
	return d.toModel(), nil
}

// Delete は指定IDのコメントを削除する。対象が存在しない場合はfalseを返す。
func (r *MongoCommentRepo) Delete(ctx context.Context, id string) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, nil
	}
	result, err := r.comments.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("failed to delete comment: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// Count は全コメント数を返す。
func (r *MongoCommentRepo) Count(ctx context.Context) (int64, error) {
	n, err := r.comments.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return n, nil
}
