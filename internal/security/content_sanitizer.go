// Package security は記事本文のHTMLサニタイズと外部URLの検証を提供する。
//
// 記事本文は管理者がリッチテキストエディタで作成するため、
// 文字の除去ではなく許可リスト方式のHTMLサニタイズで保存前に無害化する。
package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// editorClassPattern はエディタが付与する書式クラス（ql-align-center等）。
var editorClassPattern = regexp.MustCompile(`^(ql-[a-z0-9-]+)( ql-[a-z0-9-]+)*$`)

// imageSrcPattern は本文中の画像として許可するsrc。
var imageSrcPattern = regexp.MustCompile(`^(https://[^/]|/uploads/)`)

// ContentSanitizer は記事本文のHTMLを許可リストに基づいて無害化する。
// 同時に複数のゴルーチンから利用できる。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
// ポリシーの内容:
//   - 見出し・段落・リスト・引用・コードブロック・強調・リンク・画像
//   - script, iframe, style と on*イベント属性は除去
//   - imgのsrcはhttpsとアップロード済み画像の相対パスのみ
//   - 外部リンクには target="_blank" と rel="noopener noreferrer" を付与
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4",
		"p", "br", "hr", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "b", "em", "i", "u", "s", "sub", "sup", "span",
	)
	p.AllowAttrs("class").Matching(editorClassPattern).Globally()

	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("alt").OnElements("img")
	p.AllowAttrs("src").Matching(imageSrcPattern).OnElements("img")

	return &ContentSanitizer{policy: p}
}

// Sanitize はHTMLを無害化して返す。同じ入力には常に同じ結果を返す。
func (s *ContentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
