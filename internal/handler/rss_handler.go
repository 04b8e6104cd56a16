package handler

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/writeflow/internal/textutil"
)

// rssSummaryLength はメタディスクリプションがない記事の説明文の長さ。
const rssSummaryLength = 200

// RSSConfig はRSSフィードのチャンネル情報。
type RSSConfig struct {
	Title         string
	Description   string
	PublicSiteURL string
}

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Category    string `xml:"category,omitempty"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// RSSHandler は公開済み記事のRSS 2.0フィードを配信する。
type RSSHandler struct {
	blogs  BlogServiceInterface
	config RSSConfig
}

// NewRSSHandler はRSSHandlerを生成する。
func NewRSSHandler(blogs BlogServiceInterface, config RSSConfig) *RSSHandler {
	if config.Title == "" {
		config.Title = "WriteFlow"
	}
	if config.Description == "" {
		config.Description = "Latest posts from WriteFlow"
	}
	return &RSSHandler{blogs: blogs, config: config}
}

// Feed はRSSフィードを返す。記事は新しい順。
// GET /api/blogs/rss
func (h *RSSHandler) Feed(w http.ResponseWriter, r *http.Request) {
	posts, err := h.blogs.ListPublished(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	base := strings.TrimSuffix(h.config.PublicSiteURL, "/")
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		desc := strings.TrimSpace(p.MetaDescription)
		if desc == "" {
			desc = textutil.Summary(p.Body, rssSummaryLength)
		}
		link := base + "/blog/" + p.ID
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        link,
			Description: desc,
			Category:    string(p.Category),
			PubDate:     p.CreatedAt.UTC().Format(time.RFC1123Z),
			GUID:        link,
		})
	}

	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       h.config.Title,
			Link:        base,
			Description: h.config.Description,
			Items:       items,
		},
	}
	if len(posts) > 0 {
		feed.Channel.LastBuildDate = posts[0].UpdatedAt.UTC().Format(time.RFC1123Z)
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(feed); err != nil {
		slog.Error("failed to encode rss feed", slog.String("error", err.Error()))
	}
}
