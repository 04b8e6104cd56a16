package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hitoshi/writeflow/internal/ai"
	"github.com/hitoshi/writeflow/internal/auth"
	"github.com/hitoshi/writeflow/internal/blog"
	"github.com/hitoshi/writeflow/internal/comment"
	"github.com/hitoshi/writeflow/internal/config"
	"github.com/hitoshi/writeflow/internal/database"
	"github.com/hitoshi/writeflow/internal/handler"
	"github.com/hitoshi/writeflow/internal/logger"
	"github.com/hitoshi/writeflow/internal/mail"
	"github.com/hitoshi/writeflow/internal/media"
	"github.com/hitoshi/writeflow/internal/metrics"
	"github.com/hitoshi/writeflow/internal/middleware"
	"github.com/hitoshi/writeflow/internal/newsletter"
	"github.com/hitoshi/writeflow/internal/notify"
	"github.com/hitoshi/writeflow/internal/repository"
	"github.com/hitoshi/writeflow/internal/security"
	"github.com/hitoshi/writeflow/internal/validate"
)

const (
	// uploadPublicPrefix はアップロード画像を配信するURLパス。
	uploadPublicPrefix = "/uploads"
	// imageFetchTimeout は画像生成プロバイダーの応答を待つ上限。
	imageFetchTimeout = 60 * time.Second
	// shutdownTimeout はグレースフルシャットダウンの上限。
	shutdownTimeout = 30 * time.Second
	// storePingTimeout は起動時とヘルスチェックでストアの疎通確認に使う上限。
	storePingTimeout = 5 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("store", cfg.StoreDriver),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandBroadcast:
		return runBroadcast(cfg, CommandArg(args))
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// ストアに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストア接続
	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// 2. 依存関係のワイヤリング
	router, cleanup, err := buildRouter(cfg, st)
	if err != nil {
		return err
	}
	defer cleanup()

	// 3. HTTPサーバーの起動
	// AI生成と画像生成はプロバイダーの応答を待つため、書き込みタイムアウトを長めに取る
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.AITimeout + imageFetchTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// services はストアの上に組み立てたドメインサービス群。
type services struct {
	collector  *metrics.Collector
	registry   *prometheus.Registry
	blogs      *blog.Service
	comments   *comment.Service
	newsletter *newsletter.Service
}

// buildServices はメトリクス・メール通知・ドメインサービスを組み立てる。
func buildServices(cfg *config.Config, st *store) *services {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	sender := mail.NewSender(mail.Config{
		Host:     cfg.MailHost,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
	})
	if !sender.Configured() {
		slog.Warn("mail is not configured; subscriber notifications will be skipped")
	}

	notifier := notify.New(sender, st.Subscribers, notify.Config{
		PublicSiteURL: cfg.PublicSiteURL,
		FallbackTo:    cfg.MailToFallback,
		BatchSize:     cfg.MailBatchSize,
		SendInterval:  cfg.MailSendInterval,
	}, collector)

	blogs := blog.NewService(
		st.Posts, st.Comments,
		security.NewContentSanitizer(),
		notifier, collector,
		blog.Config{NotifyOnPublish: cfg.NotifyOnPublish},
	)

	return &services{
		collector:  collector,
		registry:   registry,
		blogs:      blogs,
		comments:   comment.NewService(st.Comments, st.Posts),
		newsletter: newsletter.NewService(st.Subscribers, st.Posts, notifier),
	}
}

// buildRouter はサービスとミドルウェアを組み立て、ルーターを返す。
// 返り値のcleanupはレート制限の掃除goroutineを止める。
func buildRouter(cfg *config.Config, st *store) (http.Handler, func(), error) {
	// 1. 管理者認証
	authService, err := buildAuth(cfg)
	if err != nil {
		return nil, nil, err
	}

	// 2. ドメインサービス
	svc := buildServices(cfg, st)

	// 3. AI・画像
	generator, err := ai.New(ai.Config{
		Provider: cfg.AIProvider,
		APIKey:   cfg.AIAPIKey,
		Model:    cfg.AIModel,
		Timeout:  cfg.AITimeout,
	}, svc.collector)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure ai provider: %w", err)
	}
	if cfg.AIAPIKey == "" {
		slog.Warn("AI_API_KEY is not set; content generation is disabled")
	}

	images := media.NewLocalStore(cfg.UploadDir, uploadPublicPrefix, cfg.ImageMaxWidth, cfg.UploadMaxBytes)
	imageGenerator := media.NewImageGenerator(security.NewSafeClient(imageFetchTimeout), cfg.ImageProviderURL, images)

	// 4. レート制限
	rlConfig := middleware.DefaultRateLimiterConfig()
	rlConfig.SweepInterval = cfg.RateLimitSweepInterval
	rlConfig.TrustProxy = cfg.TrustProxy
	rlConfig.Recorder = svc.collector
	rateLimiter := middleware.NewRateLimiter(rlConfig)
	svc.collector.RegisterRateLimitBuckets(rateLimiter.BucketCount)

	// 5. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		StatusObserver:    svc.collector,
		CORSAllowedOrigin: cfg.ClientURL,
		RateLimiter:       rateLimiter,
		TokenVerifier:     authService,

		AuthService: authService,

		BlogService:       svc.blogs,
		CommentService:    svc.comments,
		NewsletterService: svc.newsletter,

		AIGenerator:    generator,
		ImageGenerator: imageGenerator,
		ImageStore:     images,
		MaxUploadBytes: cfg.UploadMaxBytes,
		UploadDir:      cfg.UploadDir,

		RSS: handler.RSSConfig{PublicSiteURL: cfg.PublicSiteURL},

		HealthCheck:    st.Ping,
		MetricsHandler: metrics.Handler(svc.registry),
	}

	return handler.NewRouter(deps), rateLimiter.Stop, nil
}

// buildAuth は管理者認証サービスを生成する。
// ADMIN_PASSWORD_HASHがなければADMIN_PASSWORDを起動時にハッシュ化する。
func buildAuth(cfg *config.Config) (*auth.Service, error) {
	hash := []byte(cfg.AdminPasswordHash)
	if len(hash) == 0 {
		var err error
		hash, err = auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	}

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	service := auth.NewService(issuer, auth.ServiceConfig{
		AdminEmail:   validate.Sanitize(cfg.AdminEmail),
		PasswordHash: hash,
	})
	return service, nil
}

// runMigrate はストアのスキーマを準備する。
// PostgreSQLは未適用マイグレーションを順番に適用し、MongoDBはインデックスを作成する。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreDriver == config.StoreDriverMongo {
		st, err := openStore(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		slog.Info("mongodb indexes are up to date")
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runBroadcast は公開済み記事1件の通知を購読者全員に手動で送る。
func runBroadcast(cfg *config.Config, postID string) error {
	if postID == "" {
		return errors.New("broadcast requires a post id: writeflow broadcast <postID>")
	}
	id, err := validate.ID(postID)
	if err != nil {
		return fmt.Errorf("invalid post id %q", postID)
	}
	postID = id

	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := buildServices(cfg, st)

	ctx, cancel := context.WithTimeout(context.Background(), notify.DefaultDispatchTimeout)
	defer cancel()

	report, err := svc.blogs.NotifySubscribers(ctx, postID)
	if err != nil {
		return fmt.Errorf("broadcast failed: %w", err)
	}

	slog.Info("broadcast completed",
		slog.String("post_id", postID),
		slog.Int("sent", report.Sent),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// store はリポジトリ群と、接続の疎通確認・クローズ処理をまとめたもの。
type store struct {
	*repository.Store
	ping  func(ctx context.Context) error
	close func()
}

// Ping はストアへの疎通を確認する。
func (s *store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close はストアの接続を閉じる。
func (s *store) Close() {
	s.close()
}

// openStore は設定されたドライバーでストアに接続する。
// MongoDBの場合は接続時にインデックスも作成する。
func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	if cfg.StoreDriver == config.StoreDriverMongo {
		client, db, err := database.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		slog.Info("mongodb connection established", slog.String("database", cfg.MongoDatabase))
		return newMongoStore(client, db), nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, storePingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return newPostgresStore(db), nil
}

func newPostgresStore(db *sql.DB) *store {
	return &store{
		Store: repository.NewPostgresStore(db),
		ping: func(ctx context.Context) error {
			return database.Ping(ctx, db, storePingTimeout)
		},
		close: func() { db.Close() },
	}
}

func newMongoStore(client *mongo.Client, db *mongo.Database) *store {
	return &store{
		Store: repository.NewMongoStore(db),
		ping: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, storePingTimeout)
			defer cancel()
			if err := client.Ping(ctx, nil); err != nil {
				return fmt.Errorf("failed to ping mongodb: %w", err)
			}
			return nil
		},
		close: func() { _ = client.Disconnect(context.Background()) },
	}
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
