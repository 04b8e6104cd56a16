// Package session は管理画面クライアントが保存済みトークンを再利用してよいかを判定する。
// 判定はUX上のヒューリスティックであり、認可は常にサーバー側のトークン検証で行う。
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// RecoveryWindow はブラウザを閉じた後にセッションを復元できる期間。
	RecoveryWindow = 30 * time.Minute
	// NoticeInterval はレート制限通知を重複表示しない間隔。
	NoticeInterval = 2500 * time.Millisecond
	// DefaultRetryAfter はretryAfterが得られない場合の待機秒数。
	DefaultRetryAfter = 60
)

// State はクライアントが保持するセッション情報。
type State struct {
	Token string
	// ExpiresAt はログイン時に保存したトークンの有効期限。ゼロ値なら未保存。
	ExpiresAt time.Time
	// InitAt はセッション開始時刻。ゼロ値なら未保存。
	InitAt time.Time
	// ActiveInBrowser は現在のブラウザセッション中にログイン済みかどうか。
	ActiveInBrowser bool
}

// Outcome は復元判定の結果。
type Outcome int

const (
	// None はトークンが保存されていない。
	None Outcome = iota
	// Active は同じブラウザセッション内でトークンを継続利用する。
	Active
	// Restored はブラウザ再起動後、復元期間内のため再利用する。
	Restored
	// ClearedExpired はトークンの有効期限切れで破棄する。
	ClearedExpired
	// ClearedInvalid はトークンを解釈できないため破棄する。
	ClearedInvalid
	// ClearedRecoveryWindow は復元期間を過ぎたため破棄する。
	ClearedRecoveryWindow
)

func (o Outcome) String() string {
	switch o {
	case None:
		return "none"
	case Active:
		return "active"
	case Restored:
		return "restored"
	case ClearedExpired:
		return "cleared_expired"
	case ClearedInvalid:
		return "cleared_invalid"
	case ClearedRecoveryWindow:
		return "cleared_recovery_window"
	}
	return "unknown"
}

// Usable はトークンを再利用できる結果かどうかを返す。
func (o Outcome) Usable() bool {
	return o == Active || o == Restored
}

// Cleared は保存済みの情報を破棄すべき結果かどうかを返す。
func (o Outcome) Cleared() bool {
	return o == ClearedExpired || o == ClearedInvalid || o == ClearedRecoveryWindow
}

// Restore は保存済みのセッションを再利用できるかを判定する。
// トークンの有効期限は復元期間より優先される。
func Restore(state State, now time.Time) Outcome {
	if state.Token == "" {
		return None
	}

	if !state.ExpiresAt.IsZero() && now.After(state.ExpiresAt) {
		return ClearedExpired
	}

	exp, err := ParseExpiry(state.Token)
	if err != nil {
		return ClearedInvalid
	}
	if !exp.After(now) {
		return ClearedExpired
	}

	if state.ActiveInBrowser {
		return Active
	}
	if state.InitAt.IsZero() || now.Sub(state.InitAt) > RecoveryWindow {
		return ClearedRecoveryWindow
	}
	return Restored
}

// ErrNoExpiry はトークンにexpクレームがないことを表す。
var ErrNoExpiry = errors.New("session: token has no expiry")

// ParseExpiry はトークンの署名を検証せずにexpクレームを読み取る。
// クライアント側の表示判定専用で、認可に使ってはならない。
func ParseExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// NoticeGate はレート制限の通知を一定間隔に1回だけ許可する。
type NoticeGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewNoticeGate はNoticeGateを生成する。intervalが0以下ならNoticeIntervalを使う。
func NewNoticeGate(interval time.Duration) *NoticeGate {
	if interval <= 0 {
		interval = NoticeInterval
	}
	return &NoticeGate{interval: interval}
}

// Allow は通知を表示してよければtrueを返し、表示時刻を記録する。
func (g *NoticeGate) Allow(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() && now.Sub(g.last) <= g.interval {
		return false
	}
	g.last = now
	return true
}

// RetryAfter はレート制限応答のretryAfter秒を待機時間に変換する。
// 正の値でなければDefaultRetryAfterを使う。
func RetryAfter(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = DefaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}
