package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/viewtracker/internal/config"
	"github.com/hitoshi/viewtracker/internal/handler"
	"github.com/hitoshi/viewtracker/internal/health"
	"github.com/hitoshi/viewtracker/internal/logger"
	"github.com/hitoshi/viewtracker/internal/metrics"
	"github.com/hitoshi/viewtracker/internal/middleware"
	"github.com/hitoshi/viewtracker/internal/provider"
	"github.com/hitoshi/viewtracker/internal/security"
	"github.com/hitoshi/viewtracker/internal/tracker"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
			port = "8080"
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
		slog.Duration("poll_interval", cfg.PollInterval),
	)

	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーとバックグラウンドジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// バックグラウンドジョブ用のルートコンテキスト
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. セキュリティサービスの初期化
	urlGuard := security.NewURLGuard()
	sanitizer := security.NewDisplaySanitizer()

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. プロバイダクライアントの初期化
	// SSRF対策済みのHTTPクライアントでプロバイダAPIにアクセスする
	providerClient := provider.NewClient(
		urlGuard.NewSafeClient(cfg.ProviderTimeout),
		slog.Default(),
		collector,
		provider.ClientConfig{
			BaseURL:    cfg.ProviderBaseURL,
			APIKey:     cfg.ProviderAPIKey,
			HealthPath: cfg.HealthCheckPath,
		},
	)
	normalizer := provider.NewNormalizer(sanitizer)
	providerService := provider.NewService(providerClient, normalizer)

	// 4. トラッキングマネージャーの初期化
	manager := tracker.NewManager(providerService, slog.Default(), collector, tracker.ManagerConfig{
		PollInterval:     cfg.PollInterval,
		ProviderTimeout:  cfg.ProviderTimeout,
		FailureThreshold: cfg.FailureThreshold,
		BackoffMaxFactor: cfg.BackoffMaxFactor,
		HistoryLimit:     cfg.HistoryLimit,
		SessionRetention: cfg.SessionRetention,
	})

	// 5. ヘルスモニターの起動
	monitor := health.NewMonitor(providerService, slog.Default(), cfg.ProviderTimeout)
	go monitor.Start(ctx, cfg.HealthInterval)

	// 6. 停止済みセッションの掃除ジョブの起動
	janitor := tracker.NewJanitor(manager, slog.Default())
	go janitor.Start(ctx, cfg.SessionRetention)

	// 7. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = perMinute(cfg.RateLimitGeneral)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.TrackingRate = perMinute(cfg.RateLimitTracking)
	rateLimiterCfg.TrackingBurst = cfg.RateLimitTracking
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Tracking:          manager,
		Provider:          providerService,
		Validator:         urlGuard,
		Health:            monitor,
		MetricsGatherer:   registry,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// バックグラウンドジョブとポーリングセッションを停止する
	cancel()
	manager.Shutdown()
	rateLimiter.Stop()

	slog.Info("API server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /api/health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/api/health", port)
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

// perMinute はreq/min単位の設定値をrate.Limit（req/sec）に変換する。
func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}
