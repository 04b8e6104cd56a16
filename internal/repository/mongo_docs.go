package repository

import (
	"time"

	"github.com/hitoshi/writeflow/internal/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// postDoc はblogsコレクションのドキュメント形式。
type postDoc struct {
	ID              primitive.ObjectID `bson:"_id"`
	Title           string             `bson:"title"`
	Subtitle        string             `bson:"subTitle"`
	Description     string             `bson:"description"`
	Category        string             `bson:"category"`
	Image           string             `bson:"image"`
	IsPublished     bool               `bson:"isPublished"`
	Views           int64              `bson:"views"`
	MetaDescription string             `bson:"metaDescription"`
	Tags            []string           `bson:"tags"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func (d *postDoc) toModel() *model.Post {
	return &model.Post{
		ID:              d.ID.Hex(),
		Title:           d.Title,
		Subtitle:        d.Subtitle,
		Body:            d.Description,
		Category:        model.Category(d.Category),
		Image:           d.Image,
		IsPublished:     d.IsPublished,
		Views:           d.Views,
		MetaDescription: d.MetaDescription,
		Tags:            d.Tags,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func newPostDoc(id primitive.ObjectID, p *model.Post) *postDoc {
	return &postDoc{
		ID:              id,
		Title:           p.Title,
		Subtitle:        p.Subtitle,
		Description:     p.Body,
		Category:        string(p.Category),
		Image:           p.Image,
		IsPublished:     p.IsPublished,
		Views:           p.Views,
		MetaDescription: p.MetaDescription,
		Tags:            nonNilTags(p.Tags),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// commentDoc はcommentsコレクションのドキュメント形式。
// PostTitleは集計時の$lookupでのみ埋まる。
type commentDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Blog       primitive.ObjectID `bson:"blog"`
	Name       string             `bson:"name"`
	Content    string             `bson:"content"`
	IsApproved bool               `bson:"isApproved"`
	CreatedAt  time.Time          `bson:"createdAt"`
	PostTitle  string             `bson:"postTitle,omitempty"`
}

func (d *commentDoc) toModel() *model.Comment {
	return &model.Comment{
		ID:         d.ID.Hex(),
		PostID:     d.Blog.Hex(),
		Name:       d.Name,
		Content:    d.Content,
		IsApproved: d.IsApproved,
		CreatedAt:  d.CreatedAt,
	}
}

// subscriberDoc はsubscribersコレクションのドキュメント形式。
type subscriberDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Email     string             `bson:"email"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d *subscriberDoc) toModel() *model.Subscriber {
	return &model.Subscriber{
		ID:        d.ID.Hex(),
		Email:     d.Email,
		CreatedAt: d.CreatedAt,
	}
}

// objectID は16進数IDをObjectIDに変換する。形式が不正な場合はfalseを返す。
// 不正なIDは「該当なし」として扱う。
func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}
