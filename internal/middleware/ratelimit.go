package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hitoshi/setlister/internal/model"
	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate         rate.Limit    // API全般のレート（req/sec）
	GeneralBurst        int           // API全般のバーストサイズ
	PlaylistCreateRate  rate.Limit    // プレイリスト作成のレート（req/sec）
	PlaylistCreateBurst int           // プレイリスト作成のバーストサイズ
	CleanupInterval     time.Duration // 期限切れエントリのクリーンアップ間隔
}

// NewRateLimiterConfig は1分あたりのリクエスト数からレート制限設定を生成する。
func NewRateLimiterConfig(generalPerMinute, playlistCreatePerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:         rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst:        generalPerMinute,
		PlaylistCreateRate:  rate.Limit(float64(playlistCreatePerMinute) / 60.0),
		PlaylistCreateBurst: playlistCreatePerMinute,
		CleanupInterval:     5 * time.Minute,
	}
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min、プレイリスト作成 10 req/min。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(120, 10)
}

// limiterEntry はキーごとのレートリミッターとアクセス時刻を保持する。
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterPool はキーごとにトークンバケットを管理する。
type limiterPool struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

func newLimiterPool(limit rate.Limit, burst int) *limiterPool {
	return &limiterPool{limit: limit, burst: burst, entries: make(map[string]*limiterEntry)}
}

func (p *limiterPool) allow(key string, now time.Time) bool {
	p.mu.Lock()
	e, ok := p.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.entries[key] = e
	}
	e.lastAccess = now
	p.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

func (p *limiterPool) evictIdle(now time.Time, ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, e := range p.entries {
		if now.Sub(e.lastAccess) > ttl {
			delete(p.entries, key)
		}
	}
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// RateLimiter はレート制限を管理する。
// 認証済みAPIはユーザー単位、公開APIはクライアントIP単位で制限する。
// プレイリスト作成はAPI全般とは独立に制限する。
type RateLimiter struct {
	config RateLimiterConfig

	general        *limiterPool
	playlistCreate *limiterPool
	public         *limiterPool

	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:         config,
		general:        newLimiterPool(config.GeneralRate, config.GeneralBurst),
		playlistCreate: newLimiterPool(config.PlaylistCreateRate, config.PlaylistCreateBurst),
		public:         newLimiterPool(config.GeneralRate, config.GeneralBurst),
		now:            time.Now,
		stopCh:         make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼び出してもよい。
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のユーザー単位レート制限ミドルウェアを返す。
// セッションミドルウェアの後に配置する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.userMiddleware(rl.general, rl.config.GeneralRate, "general")
}

// PlaylistCreateMiddleware はプレイリスト作成専用のレート制限ミドルウェアを返す。
// プレイリスト作成は外部APIを多数呼び出すため、API全般より厳しく制限する。
func (rl *RateLimiter) PlaylistCreateMiddleware() func(next http.Handler) http.Handler {
	return rl.userMiddleware(rl.playlistCreate, rl.config.PlaylistCreateRate, "playlist_create")
}

// PublicMiddleware は認証不要のエンドポイント向けにクライアントIP単位で制限するミドルウェアを返す。
func (rl *RateLimiter) PublicMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.public.allow(ip, rl.now()) {
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", ip),
					slog.String("limit_type", "public"),
				)
				writeRateLimitResponse(w, rl.config.GeneralRate)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) userMiddleware(pool *limiterPool, limit rate.Limit, limitType string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			if !pool.allow(userID, rl.now()) {
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", limitType),
				)
				writeRateLimitResponse(w, limit)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCounts は管理中のエントリ数を返す。テスト用。
func (rl *RateLimiter) LimiterCounts() (general, playlistCreate, public int) {
	return rl.general.size(), rl.playlistCreate.size(), rl.public.size()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	now := rl.now()
	ttl := rl.config.CleanupInterval * 2
	rl.general.evictIdle(now, ttl)
	rl.playlistCreate.evictIdle(now, ttl)
	rl.public.evictIdle(now, ttl)
}

// clientIP はリクエスト元のIPアドレスを返す。
// プロキシ配下ではchiのRealIPミドルウェアでRemoteAddrが書き換えられている前提とする。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = max(int(math.Ceil(1.0/float64(r))), 1)
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
