package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/writeflow/internal/model"
)

// ImageGenerator はプロンプトから画像を生成するプロバイダーを呼び出し、結果をStoreに保存する。
// プロバイダーはURLパスにプロンプトを受け取り、画像本体を返す形式を想定する。
type ImageGenerator struct {
	client  *http.Client
	baseURL string
	store   Store
	now     func() time.Time
}

// NewImageGenerator はImageGeneratorを生成する。
// clientには内部ネットワークへの接続を拒否するクライアントを渡す。
func NewImageGenerator(client *http.Client, baseURL string, store Store) *ImageGenerator {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &ImageGenerator{
		client:  client,
		baseURL: baseURL,
		store:   store,
		now:     time.Now,
	}
}

// Prompt はサムネイル生成用のプロンプトを組み立てる。
func Prompt(title, category string) string {
	parts := []string{"modern minimal blog thumbnail illustration"}
	if c := strings.TrimSpace(category); c != "" {
		parts = append(parts, "theme: "+c)
	}
	parts = append(parts,
		"title: "+strings.TrimSpace(title),
		"clean composition, high contrast, no text, no watermark",
	)
	return strings.Join(parts, ", ")
}

// Generate はタイトルとカテゴリからカバー画像を生成して保存し、公開URLを返す。
// プロバイダーの失敗は502のAPIErrorとして返す。
func (g *ImageGenerator) Generate(ctx context.Context, title, category string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", model.NewValidationError("Title is required to generate an image")
	}

	seed := g.now().UnixMilli()
	q := url.Values{}
	q.Set("width", "1280")
	q.Set("height", "720")
	q.Set("seed", strconv.FormatInt(seed, 10))
	q.Set("nologo", "true")
	target := g.baseURL + url.PathEscape(Prompt(title, category)) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		slog.Warn("image generation request failed", slog.String("error", err.Error()))
		return "", model.NewUpstreamError("Image generation failed, please try again")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", model.NewUpstreamError(fmt.Sprintf("Image generation failed (%d)", resp.StatusCode))
	}

	name := fmt.Sprintf("ai-%s-%d", Slugify(title), seed)
	imageURL, err := g.store.Save(ctx, name, resp.Body)
	if err != nil {
		slog.Warn("generated image could not be stored", slog.String("error", err.Error()))
		return "", model.NewUpstreamError("Image generation returned an unusable image, please try again")
	}
	return imageURL, nil
}
