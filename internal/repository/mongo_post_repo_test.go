package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/hitoshi/writeflow/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

// badValue はリトライ対象にならないコマンドエラー。
var badValue = mtest.CommandError{Code: 2, Name: "BadValue", Message: "write rejected"}

func TestMongoPostRepo_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("コメントと記事を削除する", func(mt *mtest.T) {
		repo := NewMongoPostRepo(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		found, err := repo.Delete(context.Background(), model.NewID())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !found {
			t.Error("found = false, want true")
		}
	})

	mt.Run("存在しない記事はfalse", func(mt *mtest.T) {
		repo := NewMongoPostRepo(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		found, err := repo.Delete(context.Background(), model.NewID())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if found {
			t.Error("found = true, want false")
		}
	})

	mt.Run("コメント削除に失敗したら記事を残す", func(mt *mtest.T) {
		repo := NewMongoPostRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(badValue))

		found, err := repo.Delete(context.Background(), model.NewID())
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "comments") {
			t.Errorf("error = %v, want the comment deletion to fail first", err)
		}
		if found {
			t.Error("found = true, want false when nothing was deleted")
		}
	})

	mt.Run("記事削除の失敗は見つかった扱いにしない", func(mt *mtest.T) {
		repo := NewMongoPostRepo(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}),
			mtest.CreateCommandErrorResponse(badValue),
		)

		found, err := repo.Delete(context.Background(), model.NewID())
		if err == nil || !strings.Contains(err.Error(), "failed to delete post") {
			t.Fatalf("error = %v, want post deletion failure", err)
		}
		if found {
			t.Error("found = true, want false")
		}
	})

	mt.Run("不正なIDはストアに問い合わせない", func(mt *mtest.T) {
		repo := NewMongoPostRepo(mt.DB)

		found, err := repo.Delete(context.Background(), "not-an-id")
		if err != nil || found {
			t.Errorf("Delete = (%v, %v), want (false, nil)", found, err)
		}
	})
}
