package model

import "time"

// Category はブログ記事のカテゴリを表す。
type Category string

const (
	CategoryTechnology Category = "Technology"
	CategoryStartup    Category = "Startup"
	CategoryLifestyle  Category = "Lifestyle"
	CategoryFinance    Category = "Finance"
)

// Categories は選択可能なカテゴリの一覧。表示順を兼ねる。
var Categories = []Category{
	CategoryTechnology,
	CategoryStartup,
	CategoryLifestyle,
	CategoryFinance,
}

// IsValid はカテゴリが定義済みの値かどうかを返す。
func (c Category) IsValid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Post はブログ記事を表す。
type Post struct {
	ID              string
	Title           string
	Subtitle        string
	Body            string // リッチテキスト（HTML）
	Category        Category
	Image           string // カバー画像のURL
	IsPublished     bool
	Views           int64
	MetaDescription string
	Tags            []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PostUpdate は記事の作成・部分更新内容を表す。
// Title・Body・Categoryは必須。nilのフィールドは既存の値を維持する。
type PostUpdate struct {
	Title           string
	Subtitle        *string
	Body            string
	Category        Category
	IsPublished     *bool
	MetaDescription *string
	Tags            *[]string
	Image           *string
}

// Dashboard は管理画面ダッシュボードの集計値を表す。
type Dashboard struct {
	Blogs       int64
	Comments    int64
	Drafts      int64
	RecentBlogs []*Post
}
