package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/writeflow/internal/ai"
	"github.com/hitoshi/writeflow/internal/model"
)

// ImageGeneratorInterface はカバー画像の生成に必要なインターフェース。
type ImageGeneratorInterface interface {
	Generate(ctx context.Context, title, category string) (string, error)
}

// AIHandler はAIによる生成支援のHTTPハンドラー。
type AIHandler struct {
	generator ai.Generator
	images    ImageGeneratorInterface
}

// NewAIHandler はAIHandlerを生成する。
func NewAIHandler(generator ai.Generator, images ImageGeneratorInterface) *AIHandler {
	return &AIHandler{
		generator: generator,
		images:    images,
	}
}

type generateContentRequest struct {
	Prompt string `json:"prompt"`
}

type generateSEORequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type generateImageRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

// GenerateContent はプロンプトから記事本文を生成する。
// POST /api/blogs/generate-content
func (h *AIHandler) GenerateContent(w http.ResponseWriter, r *http.Request) {
	var req generateContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	content, err := h.generator.GenerateContent(r.Context(), req.Prompt)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{
		"content": content,
		"message": "Content generated successfully",
	})
}

// GenerateSEO はタイトルと本文からメタディスクリプションとタグを生成する。
// POST /api/blogs/generate-seo
func (h *AIHandler) GenerateSEO(w http.ResponseWriter, r *http.Request) {
	var req generateSEORequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.generator.GenerateSEO(r.Context(), req.Title, req.Content)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{
		"metaDescription": result.MetaDescription,
		"tags":            result.Tags,
	})
}

// GenerateImage はタイトルとカテゴリからカバー画像を生成し、そのURLを返す。
// POST /api/blogs/generate-image
func (h *AIHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req generateImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if h.images == nil {
		handleServiceError(w, r, model.NewUpstreamError("Image generation is not available"))
		return
	}

	imageURL, err := h.images.Generate(r.Context(), req.Title, req.Category)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"imageUrl": imageURL})
}
