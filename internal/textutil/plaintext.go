// Package textutil はリッチテキスト（HTML）からのプレーンテキスト抽出を提供する。
// RSSの説明文、通知メールのテキスト版、AIプロンプトの入力に使う。
package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockElements は前後に区切りを入れる要素。
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Div: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Tr: true, atom.Hr: true,
}

// skippedElements は中身をテキストとして扱わない要素。
var skippedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
}

// PlainText はHTMLからテキストだけを取り出し、連続する空白を1つにまとめる。
// 文字実体参照はデコードされる。
func PlainText(htmlBody string) string {
	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(htmlBody))
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			a := atom.Lookup(name)
			if skippedElements[a] && tt == html.StartTagToken {
				skipDepth++
			}
			if blockElements[a] {
				b.WriteByte(' ')
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			a := atom.Lookup(name)
			if skippedElements[a] && skipDepth > 0 {
				skipDepth--
			}
			if blockElements[a] {
				b.WriteByte(' ')
			}

		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

// Truncate はsをmaxRunes文字以内に切り詰める。切り詰めた場合は末尾に"..."を付ける。
// 可能であれば単語の途中で切らない。
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}

	runes := []rune(s)
	cut := string(runes[:maxRunes])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}

// Summary はHTML本文からmaxRunes文字以内の要約を作る。
func Summary(htmlBody string, maxRunes int) string {
	return Truncate(PlainText(htmlBody), maxRunes)
}
