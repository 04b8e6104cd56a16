package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/hitoshi/writeflow/internal/model"
)

const footer = `<p style="margin:18px 0 0;color:#888;font-size:12px">You received this because you subscribed to WriteFlow updates.</p>`

var newPostTmpl = template.Must(template.New("new_post").Parse(`
<div style="font-family:Arial,Helvetica,sans-serif;line-height:1.5">
  <h2 style="margin:0 0 8px">{{.Title}}</h2>
  <p style="margin:0 0 12px;color:#555">{{.Description}}</p>
  <p style="margin:0 0 14px;color:#777;font-size:13px">Category: <b>{{.Category}}</b></p>
  <a href="{{.URL}}" style="display:inline-block;padding:10px 14px;text-decoration:none;border-radius:8px;background:#2563eb;color:#fff">Read the blog</a>
  ` + footer + `
</div>`))

var welcomeTmpl = template.Must(template.New("welcome").Parse(`
<div style="font-family:Arial,Helvetica,sans-serif;line-height:1.5">
  <h2 style="margin:0 0 10px">Thanks for subscribing!</h2>
  <p style="margin:0 0 14px;color:#555">You'll now get an email when a new blog is published.</p>
  {{- if .Posts}}
  <h3 style="margin:18px 0 8px">Recent posts</h3>
  <ul style="padding-left:18px;margin:0">
    {{- range .Posts}}
    <li style="margin:0 0 10px"><a href="{{.URL}}">{{.Title}}</a>{{if .Description}}<div style="color:#666;font-size:13px">{{.Description}}</div>{{end}}</li>
    {{- end}}
  </ul>
  {{- end}}
  ` + footer + `
</div>`))

// postView はテンプレートに渡す記事の表示用データ。
type postView struct {
	Title       string
	Description string
	Category    string
	URL         string
}

// Email は件名と本文の組。
type Email struct {
	Subject string
	HTML    string
	Text    string
}

// BuildNewPostEmail は新着記事の通知メールを組み立てる。
// 値はhtml/templateによりエスケープされる。
func (n *Notifier) BuildNewPostEmail(post *model.Post) (Email, error) {
	view := postView{
		Title:       post.Title,
		Description: post.MetaDescription,
		Category:    string(post.Category),
		URL:         n.PostURL(post.ID),
	}
	if view.Description == "" {
		view.Description = "A new post is live on WriteFlow."
	}
	if view.Category == "" {
		view.Category = "General"
	}

	var buf bytes.Buffer
	if err := newPostTmpl.Execute(&buf, view); err != nil {
		return Email{}, fmt.Errorf("failed to render new post email: %w", err)
	}

	subjectTitle := post.Title
	if subjectTitle == "" {
		subjectTitle = "WriteFlow"
	}

	return Email{
		Subject: "New blog published: " + subjectTitle,
		HTML:    buf.String(),
		Text:    fmt.Sprintf("%s\n\n%s\n\nRead: %s\n", post.Title, post.MetaDescription, view.URL),
	}, nil
}

// BuildWelcomeEmail は購読開始時のウェルカムメールを組み立てる。
// recentには最近公開された記事を渡す。
func (n *Notifier) BuildWelcomeEmail(recent []*model.Post) (Email, error) {
	views := make([]postView, 0, len(recent))
	var text strings.Builder
	text.WriteString("Thanks for subscribing to WriteFlow!\n\nRecent posts:\n")

	for _, p := range recent {
		v := postView{Title: p.Title, Description: p.MetaDescription, URL: n.PostURL(p.ID)}
		views = append(views, v)
		fmt.Fprintf(&text, "- %s: %s\n", v.Title, v.URL)
	}

	var buf bytes.Buffer
	if err := welcomeTmpl.Execute(&buf, struct{ Posts []postView }{views}); err != nil {
		return Email{}, fmt.Errorf("failed to render welcome email: %w", err)
	}

	return Email{
		Subject: "Welcome to WriteFlow – Recent posts inside",
		HTML:    buf.String(),
		Text:    text.String(),
	}, nil
}
