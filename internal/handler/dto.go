package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/hitoshi/writeflow/internal/model"
)

// postResponse は記事のAPIレスポンス。
type postResponse struct {
	ID              string    `json:"_id"`
	Title           string    `json:"title"`
	SubTitle        string    `json:"subTitle"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	Image           string    `json:"image"`
	IsPublished     bool      `json:"isPublished"`
	Views           int64     `json:"views"`
	MetaDescription string    `json:"metaDescription"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toPostResponse(p *model.Post) postResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return postResponse{
		ID:              p.ID,
		Title:           p.Title,
		SubTitle:        p.Subtitle,
		Description:     p.Body,
		Category:        string(p.Category),
		Image:           p.Image,
		IsPublished:     p.IsPublished,
		Views:           p.Views,
		MetaDescription: p.MetaDescription,
		Tags:            tags,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toPostResponses(posts []*model.Post) []postResponse {
	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = toPostResponse(p)
	}
	return out
}

// commentResponse は公開APIのコメント。
type commentResponse struct {
	ID         string    `json:"_id"`
	Blog       string    `json:"blog"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	IsApproved bool      `json:"isApproved"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:         c.ID,
		Blog:       c.PostID,
		Name:       c.Name,
		Content:    c.Content,
		IsApproved: c.IsApproved,
		CreatedAt:  c.CreatedAt,
	}
}

// blogRef は管理画面のコメント一覧に埋め込む記事の参照。
type blogRef struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
}

// adminCommentResponse は管理画面向けのコメント。記事が削除済みならblogはnull。
type adminCommentResponse struct {
	ID         string    `json:"_id"`
	Blog       *blogRef  `json:"blog"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	IsApproved bool      `json:"isApproved"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toAdminCommentResponse(c *model.CommentWithPost) adminCommentResponse {
	resp := adminCommentResponse{
		ID:         c.ID,
		Name:       c.Name,
		Content:    c.Content,
		IsApproved: c.IsApproved,
		CreatedAt:  c.CreatedAt,
	}
	if c.PostTitle != "" {
		resp.Blog = &blogRef{ID: c.PostID, Title: c.PostTitle}
	}
	return resp
}

// subscriberResponse は購読者のAPIレスポンス。
type subscriberResponse struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// dashboardResponse はダッシュボードの集計値。
type dashboardResponse struct {
	Blogs       int64          `json:"blogs"`
	Comments    int64          `json:"comments"`
	Drafts      int64          `json:"drafts"`
	RecentBlogs []postResponse `json:"recentBlogs"`
}

// blogRequest は記事作成・更新の入力。
// multipartの場合はblogフィールドにこのJSONが入る。
// 省略したキーはnilのままとなり、更新時は既存の値を維持する。
type blogRequest struct {
	Title           string   `json:"title"`
	SubTitle        *string  `json:"subTitle"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	IsPublished     *bool    `json:"isPublished"`
	MetaDescription *string  `json:"metaDescription"`
	Tags            *tagList `json:"tags"`
	ImageURL        string   `json:"imageUrl"`
}

func (b blogRequest) toPostUpdate() model.PostUpdate {
	in := model.PostUpdate{
		Title:           b.Title,
		Subtitle:        b.SubTitle,
		Body:            b.Description,
		Category:        model.Category(strings.TrimSpace(b.Category)),
		IsPublished:     b.IsPublished,
		MetaDescription: b.MetaDescription,
	}
	if b.Tags != nil {
		tags := []string(*b.Tags)
		in.Tags = &tags
	}
	return in
}

// tagList はJSON配列とカンマ区切り文字列のどちらでも受け付けるタグ一覧。
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = strings.Split(s, ",")
	return nil
}
