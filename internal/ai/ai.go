// Package ai は記事本文とSEO情報の生成をLLMプロバイダーに委ねる。
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/writeflow/internal/model"
)

const (
	// DefaultTimeout はプロバイダー呼び出しのタイムアウト。
	DefaultTimeout = 30 * time.Second
	// seoContentLimit はSEO生成に渡す本文の最大文字数。
	seoContentLimit = 6000

	kindContent = "content"
	kindSEO     = "seo"
)

// SEOResult はSEO生成の結果。
type SEOResult struct {
	MetaDescription string   `json:"metaDescription"`
	Tags            []string `json:"tags"`
}

// Generator は記事本文とSEO情報を生成するインターフェース。
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	GenerateSEO(ctx context.Context, title, content string) (SEOResult, error)
}

// Recorder はプロバイダー呼び出しの結果を記録するインターフェース。
type Recorder interface {
	RecordAIRequest(kind, outcome string, duration time.Duration)
}

// Config はプロバイダーの設定。
type Config struct {
	Provider string
	APIKey   string
	Model    string
	Timeout  time.Duration
	// BaseURL はAPIのエンドポイントを差し替える。空ならプロバイダー既定値。
	BaseURL string
}

// completer はプロンプトを1回送ってテキストを受け取るプロバイダー実装。
type completer interface {
	complete(ctx context.Context, prompt string) (string, error)
}

// New は設定に応じたGeneratorを返す。
// APIキーが未設定の場合は、呼び出しのたびに502を返すGeneratorを返す。
func New(cfg Config, recorder Recorder) (Generator, error) {
	if cfg.APIKey == "" {
		return disabledGenerator{}, nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	var p completer
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		p = &geminiProvider{apiKey: cfg.APIKey, model: orDefault(cfg.Model, "gemini-2.0-flash"), baseURL: orDefault(cfg.BaseURL, geminiBaseURL), client: client}
	case "openai":
		p = &openaiProvider{apiKey: cfg.APIKey, model: orDefault(cfg.Model, "gpt-4o-mini"), baseURL: orDefault(cfg.BaseURL, openaiBaseURL), client: client}
	case "claude":
		p = &claudeProvider{apiKey: cfg.APIKey, model: orDefault(cfg.Model, "claude-haiku-4-5-20251001"), baseURL: orDefault(cfg.BaseURL, claudeBaseURL), client: client}
	default:
		return nil, fmt.Errorf("unknown AI provider: %q (valid: gemini, openai, claude)", cfg.Provider)
	}

	return &service{provider: p, recorder: recorder, now: time.Now}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

const contentPrompt = `You are a professional blog writer for WriteFlow.

WriteFlow style: tech + startups + productivity. Audience: developers, builders, and early-stage founders.

Write a complete, high-quality blog post in MARKDOWN based on the user's topic/prompt.

Rules:
- Output MUST be valid markdown (no HTML).
- Use clear H2/H3 headings.
- Use short paragraphs and bullet lists where helpful.
- Include at least 2 concrete examples or mini case studies.
- Include a "Key takeaways" section.
- Keep the tone practical and human.

User topic/prompt:
%s
`

const seoPrompt = `You are an SEO assistant. Based on the following blog details, generate:
1) A concise meta description (max 160 characters, plain text)
2) 5-8 relevant SEO tags (single or two-word phrases; lowercase; no #; JSON array)

Return ONLY a compact JSON object with the following structure and nothing else:
{
  "metaDescription": "...",
  "tags": ["tag1", "tag2", "tag3"]
}

Blog Title: %s
Blog Content (HTML allowed): %s
`

type service struct {
	provider completer
	recorder Recorder
	now      func() time.Time
}

// GenerateContent はプロンプトからMarkdownの記事本文を生成する。
func (s *service) GenerateContent(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", model.NewValidationError("Prompt is required")
	}

	text, err := s.call(ctx, kindContent, fmt.Sprintf(contentPrompt, prompt))
	if err != nil {
		return "", model.NewUpstreamError("Failed to generate content, please try again")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", model.NewUpstreamError("AI returned empty content, please try again")
	}
	return text, nil
}

// GenerateSEO はタイトルと本文からメタディスクリプションとタグを生成する。
func (s *service) GenerateSEO(ctx context.Context, title, content string) (SEOResult, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" && content == "" {
		return SEOResult{}, model.NewValidationError("Provide title or content for SEO generation")
	}

	if title == "" {
		title = "(none)"
	}
	if content == "" {
		content = "(none)"
	} else if r := []rune(content); len(r) > seoContentLimit {
		content = string(r[:seoContentLimit])
	}

	raw, err := s.call(ctx, kindSEO, fmt.Sprintf(seoPrompt, title, content))
	if err != nil {
		return SEOResult{}, model.NewUpstreamError("Failed to generate SEO fields, please try again")
	}

	result, err := ParseSEO(raw)
	if err != nil {
		slog.Warn("AI returned unusable SEO output", slog.String("error", err.Error()))
		return SEOResult{}, model.NewUpstreamError("Failed to generate SEO fields, please try again")
	}
	return result, nil
}

func (s *service) call(ctx context.Context, kind, prompt string) (string, error) {
	start := s.now()
	text, err := s.provider.complete(ctx, prompt)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		slog.Warn("AI provider call failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
	if s.recorder != nil {
		s.recorder.RecordAIRequest(kind, outcome, s.now().Sub(start))
	}
	return text, err
}

// ParseSEO はプロバイダーの出力から最初の{...}を取り出してSEOResultに変換する。
// 説明文が空、またはタグが1つもない場合はエラーを返す。
func ParseSEO(raw string) (SEOResult, error) {
	jsonText := raw
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start >= 0 && end > start {
		jsonText = raw[start : end+1]
	}

	var parsed struct {
		MetaDescription any   `json:"metaDescription"`
		Tags            []any `json:"tags"`
	}
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		return SEOResult{}, fmt.Errorf("invalid SEO JSON: %w", err)
	}

	var result SEOResult
	if s, ok := parsed.MetaDescription.(string); ok {
		result.MetaDescription = strings.TrimSpace(s)
	}
	for _, t := range parsed.Tags {
		if t == nil {
			continue
		}
		if tag := strings.TrimSpace(fmt.Sprint(t)); tag != "" {
			result.Tags = append(result.Tags, tag)
		}
	}

	if result.MetaDescription == "" || len(result.Tags) == 0 {
		return SEOResult{}, fmt.Errorf("SEO output is missing description or tags")
	}
	return result, nil
}

type disabledGenerator struct{}

func (disabledGenerator) GenerateContent(context.Context, string) (string, error) {
	return "", model.NewUpstreamError("AI provider is not configured")
}

func (disabledGenerator) GenerateSEO(context.Context, string, string) (SEOResult, error) {
	return SEOResult{}, model.NewUpstreamError("AI provider is not configured")
}
