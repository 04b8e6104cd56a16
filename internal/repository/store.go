package repository

import (
	"database/sql"

	"go.mongodb.org/mongo-driver/mongo"
)

// NewPostgresStore はPostgreSQL実装のStoreを生成する。
func NewPostgresStore(db *sql.DB) *Store {
	return &Store{
		Posts:       NewPostgresPostRepo(db),
		Comments:    NewPostgresCommentRepo(db),
		Subscribers: NewPostgresSubscriberRepo(db),
	}
}

// NewMongoStore はMongoDB実装のStoreを生成する。
func NewMongoStore(db *mongo.Database) *Store {
	return &Store{
		Posts:       NewMongoPostRepo(db),
		Comments:    NewMongoCommentRepo(db),
		Subscribers: NewMongoSubscriberRepo(db),
	}
}
