package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/writeflow/internal/model"
	"github.com/hitoshi/writeflow/internal/newsletter"
)

// NewsletterServiceInterface はニュースレター関連のハンドラーが必要とするサービスインターフェース。
type NewsletterServiceInterface interface {
	Subscribe(ctx context.Context, email string) (*newsletter.SubscribeResult, error)
	List(ctx context.Context) ([]*model.Subscriber, error)
	Delete(ctx context.Context, id string) error
}

// NewsletterHandler はニュースレター購読のHTTPハンドラー。
type NewsletterHandler struct {
	service NewsletterServiceInterface
}

// NewNewsletterHandler はNewsletterHandlerを生成する。
func NewNewsletterHandler(service NewsletterServiceInterface) *NewsletterHandler {
	return &NewsletterHandler{service: service}
}

type subscribeRequest struct {
	Email string `json:"email"`
}

// Subscribe はメールアドレスを購読者として登録する。
// 登録済みのアドレスでも成功として扱い、メッセージのみ変える。
// POST /api/newsletter/subscribe
func (h *NewsletterHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Subscribe(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	message := "Subscribed successfully"
	if !result.Created {
		message = "You're already subscribed"
	}
	writeSuccess(w, http.StatusCreated, envelope{"message": message})
}
