package model

import "time"

// Comment は記事に対する読者コメントを表す。
// IsApprovedがfalseのコメントは公開APIに返さない。
type Comment struct {
	ID         string
	PostID     string
	Name       string
	Content    string
	IsApproved bool
	CreatedAt  time.Time
}

// CommentWithPost は管理画面向けに記事タイトルを結合したコメント。
// 記事が削除済みの場合PostTitleは空になる。
type CommentWithPost struct {
	Comment
	PostTitle string
}

// Subscriber はニュースレター購読者を表す。
type Subscriber struct {
	ID        string
	Email     string
	CreatedAt time.Time
}
