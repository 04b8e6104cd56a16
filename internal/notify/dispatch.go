package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultDispatchTimeout はバックグラウンド通知1回あたりの上限時間。
const DefaultDispatchTimeout = 2 * time.Minute

// Dispatch は通知処理を実行し、結果とエラーをログに記録して捨てる。
// panicも回収するため、呼び出し元に失敗が伝わることはない。
func Dispatch(ctx context.Context, name string, fn func(ctx context.Context) (Report, error)) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("notification panicked",
				slog.String("notification", name),
				slog.String("panic", fmt.Sprint(rec)),
			)
		}
	}()

	report, err := fn(ctx)
	if err != nil {
		slog.Warn("notification failed",
			slog.String("notification", name),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Debug("notification dispatched",
		slog.String("notification", name),
		slog.Int("sent", report.Sent),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
}

// DispatchAsync はリクエストのキャンセルから切り離したcontextでDispatchをゴルーチン実行する。
// 返り値のチャネルは処理完了時にcloseされる。テスト以外では待つ必要はない。
func DispatchAsync(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) (Report, error)) <-chan struct{} {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	done := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)

	go func() {
		defer close(done)
		defer cancel()
		Dispatch(ctx, name, fn)
	}()
	return done
}
