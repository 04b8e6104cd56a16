// Package validate はリクエスト入力の検証とサニタイズを提供する。
// すべての関数は純粋関数であり、ストアにはアクセスしない。
// 検証エラーは400の*model.APIErrorとして返す。
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/writeflow/internal/model"
)

// 文字数の上下限（両端を含む、rune単位）。
const (
	TitleMinLen   = 3
	TitleMaxLen   = 200
	BodyMinLen    = 50
	NameMinLen    = 2
	NameMaxLen    = 50
	ContentMinLen = 5
	ContentMaxLen = 1000
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail はメールアドレスが local@domain.tld の形かどうかを返す。
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Sanitize は前後の空白を除去し、山括弧を取り除く。
// マークアップ混入への最低限の対策であり、HTMLサニタイザではない。
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer("<", "", ">", "").Replace(s)
}

// Login はログイン入力をサニタイズしてから検証し、サニタイズ済みのメールアドレスを返す。
// パスワードは照合に使うため加工しない。
func Login(email, password string) (string, error) {
	email = Sanitize(email)
	if email == "" || password == "" {
		return "", model.NewValidationError("Email and password are required")
	}
	if !IsValidEmail(email) {
		return "", model.NewValidationError("Invalid email format")
	}
	return email, nil
}

// Post は記事の作成・更新入力を検証する。
// 本文はエディタが生成するリッチテキストのため、ここでは長さのみを見る。
func Post(title, body string, category model.Category) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" || category == "" {
		return model.NewValidationError("Title, description, and category are required")
	}
	if n := utf8.RuneCountInString(title); n < TitleMinLen || n > TitleMaxLen {
		return model.NewValidationError("Title must be between 3 and 200 characters")
	}
	if utf8.RuneCountInString(body) < BodyMinLen {
		return model.NewValidationError("Description must be at least 50 characters")
	}
	if !category.IsValid() {
		return model.NewValidationError("Invalid category")
	}
	return nil
}

// Comment はコメント入力をサニタイズしてから検証し、サニタイズ済みの値を返す。
func Comment(name, content string) (string, string, error) {
	name = Sanitize(name)
	content = Sanitize(content)

	if name == "" || content == "" {
		return "", "", model.NewValidationError("Name and content are required")
	}
	if n := utf8.RuneCountInString(name); n < NameMinLen || n > NameMaxLen {
		return "", "", model.NewValidationError("Name must be between 2 and 50 characters")
	}
	if n := utf8.RuneCountInString(content); n < ContentMinLen || n > ContentMaxLen {
		return "", "", model.NewValidationError("Comment must be between 5 and 1000 characters")
	}
	return name, content, nil
}

// Subscription は購読メールアドレスを検証し、小文字に正規化した値を返す。
func Subscription(email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", model.NewValidationError("Email is required")
	}
	email = Sanitize(email)
	if !IsValidEmail(email) {
		return "", model.NewValidationError("Invalid email format")
	}
	return strings.ToLower(email), nil
}

// ID はパスパラメータのIDが24桁の16進数かどうかを検証し、小文字に正規化した値を返す。
// ストアは小文字のIDで照合するため、大文字で指定されても同じ記事を指す。
func ID(id string) (string, error) {
	if !model.IsValidID(id) {
		return "", model.NewInvalidIDError()
	}
	return strings.ToLower(id), nil
}
