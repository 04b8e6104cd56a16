// Package notify は購読者へのメール通知を提供する。
// 通知は常にベストエフォートで、呼び出し元のHTTPレスポンスには影響しない。
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/writeflow/internal/mail"
	"github.com/hitoshi/writeflow/internal/model"
	"golang.org/x/time/rate"
)

// DefaultBatchSize は1通のメールにBCCで含める宛先数の上限。
const DefaultBatchSize = 50

// 通知結果の区分。メトリクスのラベルに使う。
const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// SubscriberSource は通知先emailの取得に必要なインターフェース。
// repository.SubscriberRepositoryの部分集合として定義する。
type SubscriberSource interface {
	ListEmails(ctx context.Context) ([]string, error)
}

// Recorder は通知結果を記録するインターフェース。
// metrics.Collectorが実装する。
type Recorder interface {
	RecordNotification(outcome string, count int)
}

// Config は通知の設定。
type Config struct {
	PublicSiteURL string        // 記事URLの組み立てに使う公開サイトのURL
	FallbackTo    string        // BCCのみのメールを拒否する送信手段向けのTo宛先
	BatchSize     int           // 0以下の場合はDefaultBatchSize
	SendInterval  time.Duration // バッチ間の最小間隔。0の場合は間隔を空けない
}

// Report は通知1回分の結果。値は宛先数で数える。
type Report struct {
	Sent    int
	Skipped int
	Failed  int
}

// Notifier は購読者へのメール通知を行う。
type Notifier struct {
	sender   mail.Sender
	subs     SubscriberSource
	config   Config
	limiter  *rate.Limiter
	recorder Recorder
}

// New はNotifierを生成する。recorderはnilでもよい。
func New(sender mail.Sender, subs SubscriberSource, config Config, recorder Recorder) *Notifier {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	limit := rate.Inf
	if config.SendInterval > 0 {
		limit = rate.Every(config.SendInterval)
	}

	return &Notifier{
		sender:   sender,
		subs:     subs,
		config:   config,
		limiter:  rate.NewLimiter(limit, 1),
		recorder: recorder,
	}
}

// PostURL は公開サイト上の記事URLを返す。
func (n *Notifier) PostURL(postID string) string {
	return strings.TrimSuffix(n.config.PublicSiteURL, "/") + "/blog/" + postID
}

// NotifyNewPost は全購読者に新着記事を通知する。
// 宛先はBatchSize件ずつBCCにまとめ、Toにはフォールバック宛先を入れる。
// 失敗したバッチはFailedに数えて残りのバッチの送信を続ける。
// 購読者一覧の取得に失敗した場合のみエラーを返す。
func (n *Notifier) NotifyNewPost(ctx context.Context, post *model.Post) (Report, error) {
	emails, err := n.subs.ListEmails(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list subscriber emails: %w", err)
	}
	if len(emails) == 0 {
		return Report{}, nil
	}

	email, err := n.BuildNewPostEmail(post)
	if err != nil {
		return Report{}, err
	}

	var to []string
	if n.config.FallbackTo != "" {
		to = []string{n.config.FallbackTo}
	}

	var report Report
	batches := Chunk(emails, n.config.BatchSize)
	for i, bcc := range batches {
		if err := n.limiter.Wait(ctx); err != nil {
			// 残りのバッチは送信できない
			for _, rest := range batches[i:] {
				report.Failed += len(rest)
			}
			slog.Warn("notification fan-out interrupted",
				slog.String("post_id", post.ID),
				slog.Int("remaining_batches", len(batches)-i),
				slog.String("error", err.Error()),
			)
			break
		}

		result, err := n.sender.Send(ctx, mail.Message{
			To:      to,
			Bcc:     bcc,
			Subject: email.Subject,
			HTML:    email.HTML,
			Text:    email.Text,
		})
		switch {
		case err != nil:
			report.Failed += len(bcc)
			slog.Warn("notification batch failed",
				slog.String("post_id", post.ID),
				slog.Int("batch", i),
				slog.Int("recipients", len(bcc)),
				slog.String("error", err.Error()),
			)
		case result.Skipped:
			report.Skipped += len(bcc)
		default:
			report.Sent += len(bcc)
		}
	}

	n.record(report)
	slog.Info("new post notification finished",
		slog.String("post_id", post.ID),
		slog.Int("sent", report.Sent),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

// Welcome は新規購読者にウェルカムメールを送る。
// recentには最近公開された記事を渡す。
func (n *Notifier) Welcome(ctx context.Context, to string, recent []*model.Post) (Report, error) {
	email, err := n.BuildWelcomeEmail(recent)
	if err != nil {
		return Report{}, err
	}

	var report Report
	result, err := n.sender.Send(ctx, mail.Message{
		To:      []string{to},
		Subject: email.Subject,
		HTML:    email.HTML,
		Text:    email.Text,
	})
	switch {
	case err != nil:
		report.Failed = 1
	case result.Skipped:
		report.Skipped = 1
	default:
		report.Sent = 1
	}

	n.record(report)
	if err != nil {
		return report, fmt.Errorf("failed to send welcome email: %w", err)
	}
	return report, nil
}

func (n *Notifier) record(r Report) {
	if n.recorder == nil {
		return
	}
	if r.Sent > 0 {
		n.recorder.RecordNotification(OutcomeSent, r.Sent)
	}
	if r.Skipped > 0 {
		n.recorder.RecordNotification(OutcomeSkipped, r.Skipped)
	}
	if r.Failed > 0 {
		n.recorder.RecordNotification(OutcomeFailed, r.Failed)
	}
}

// Chunk はemailsをsize件ずつに分割する。sizeが0以下の場合は1つにまとめる。
func Chunk(emails []string, size int) [][]string {
	if len(emails) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(emails)
	}
	out := make([][]string, 0, (len(emails)+size-1)/size)
	for start := 0; start < len(emails); start += size {
		end := min(start+size, len(emails))
		out = append(out, emails[start:end])
	}
	return out
}
