package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/writeflow/internal/model"
)

// Policy はルート種別ごとのレート制限ポリシー。
// Window内にMax回までのリクエストを許可する固定ウィンドウ方式。
type Policy struct {
	Name    string
	Window  time.Duration
	Max     int
	Message string // 制限超過時にユーザーへ返すメッセージ
}

// 定義済みポリシー
var (
	// LoginPolicy はログイン試行の制限: 15分あたり5回。
	LoginPolicy = Policy{
		Name:    "login",
		Window:  15 * time.Minute,
		Max:     5,
		Message: "Too many login attempts. Please try again after 15 minutes",
	}
	// APIPolicy はAPI全般の制限: 1分あたり100回。
	APIPolicy = Policy{
		Name:    "api",
		Window:  time.Minute,
		Max:     100,
		Message: "Too many requests from this IP",
	}
	// AIPolicy はAI生成エンドポイントの制限: 1分あたり5回。
	AIPolicy = Policy{
		Name:    "ai",
		Window:  time.Minute,
		Max:     5,
		Message: "AI generation limit reached. Please wait before trying again",
	}
)

// enabled はポリシーが有効かどうかを返す。無効なポリシーは常に許可する（fail-open）。
func (p Policy) enabled() bool {
	return p.Max > 0 && p.Window > 0
}

// RateLimitRecorder はレート制限による拒否を記録するインターフェース。
// metrics.Collectorが実装する。
type RateLimitRecorder interface {
	RecordRateLimited(policy string)
}

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	SweepInterval time.Duration    // 期限切れバケットの掃除間隔
	Grace         time.Duration    // ウィンドウ終了後にバケットを保持する猶予
	TrustProxy    bool             // X-Forwarded-Forの先頭をクライアントアドレスとして扱う
	Now           func() time.Time // テスト用に差し替え可能な時計
	Recorder      RateLimitRecorder
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		SweepInterval: 5 * time.Minute,
		Grace:         60 * time.Second,
		Now:           time.Now,
	}
}

// Decision はレート制限の判定結果。
type Decision struct {
	Allowed    bool
	RetryAfter int // 拒否時のウィンドウリセットまでの秒数（1以上）
	Remaining  int // 許可時の残り回数
}

// bucketKey はポリシーとクライアントの組でバケットを識別する。
type bucketKey struct {
	policy string
	client string
}

// bucket は1ウィンドウ分のリクエスト数とリセット時刻を保持する。
type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter はクライアントアドレスごとの固定ウィンドウレート制限を管理する。
// プロセス起動時に1つ生成し、ルーターに渡して使用する。
type RateLimiter struct {
	config RateLimiterConfig

	mu      sync.Mutex
	buckets map[bucketKey]*bucket

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// SweepIntervalが正の場合、バックグラウンドで期限切れバケットの掃除を開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Now == nil {
		config.Now = time.Now
	}

	rl := &RateLimiter{
		config:  config,
		buckets: make(map[bucketKey]*bucket),
		stopCh:  make(chan struct{}),
	}

	if config.SweepInterval > 0 {
		go rl.sweepLoop()
	}

	return rl
}

// Stop は掃除のバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

// Check はkeyからのリクエストをポリシーに照らして判定し、カウントを進める。
// 判定と加算は同一ロック内で行うため、同一キーへの並行リクエストでも上限を超えて許可しない。
func (rl *RateLimiter) Check(key string, p Policy) Decision {
	if !p.enabled() {
		return Decision{Allowed: true}
	}

	now := rl.config.Now()
	k := bucketKey{policy: p.Name, client: key}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[k]
	if !exists || now.After(b.resetAt) {
		rl.buckets[k] = &bucket{count: 1, resetAt: now.Add(p.Window)}
		return Decision{Allowed: true, Remaining: p.Max - 1}
	}

	if b.count >= p.Max {
		return Decision{Allowed: false, RetryAfter: retryAfterSeconds(b.resetAt.Sub(now))}
	}

	b.count++
	return Decision{Allowed: true, Remaining: p.Max - b.count}
}

// Middleware はポリシーを適用するHTTPミドルウェアを返す。
// 上限超過時は429とRetry-Afterを返し、後続のハンドラーを呼ばない。
func (rl *RateLimiter) Middleware(p Policy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientKey(r, rl.config.TrustProxy)

			d := rl.Check(key, p)
			if !d.Allowed {
				slog.Warn("rate limit exceeded",
					slog.String("policy", p.Name),
					slog.String("client_key", key),
					slog.Int("retry_after", d.RetryAfter),
				)
				if rl.config.Recorder != nil {
					rl.config.Recorder.RecordRateLimited(p.Name)
				}
				WriteErrorResponse(w, model.NewRateLimitError(p.Message, d.RetryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BucketCount は現在管理されているバケット数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) BucketCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Sweep はウィンドウ終了からGraceを過ぎたバケットを削除し、削除数を返す。
// 削除後に同じキーから来たリクエストは新しいウィンドウで数え直される。
func (rl *RateLimiter) Sweep(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for k, b := range rl.buckets {
		if now.After(b.resetAt.Add(rl.config.Grace)) {
			delete(rl.buckets, k)
			removed++
		}
	}
	return removed
}

// sweepLoop はバックグラウンドで期限切れバケットを定期的に削除する。
func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := rl.Sweep(rl.config.Now()); n > 0 {
				slog.Debug("rate limit buckets swept", slog.Int("removed", n))
			}
		case <-rl.stopCh:
			return
		}
	}
}

// ClientKey はリクエストのクライアントアドレスを返す。
// trustProxyがtrueの場合はX-Forwarded-Forの先頭を優先する。
func ClientKey(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// retryAfterSeconds は残り時間を切り上げた秒数を返す。最小1秒。
func retryAfterSeconds(d time.Duration) int {
	sec := int(math.Ceil(d.Seconds()))
	if sec < 1 {
		return 1
	}
	return sec
}
