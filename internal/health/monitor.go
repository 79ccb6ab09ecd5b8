// Package health はプロバイダの疎通・認証状態の定期監視を提供する。
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/viewtracker/internal/model"
)

// ProviderChecker はプロバイダのヘルスチェック実行インターフェース。
// provider.Serviceが実装する。
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// Status はプロバイダの観測済みヘルス状態。
type Status struct {
	// Reachable はプロバイダが応答を返したかどうか。
	Reachable bool
	// AuthValid はAPIキーによる認証が有効かどうか。
	AuthValid bool
	// LastCheckedAt は最後にチェックを実行した時刻。ゼロ値は未実行。
	LastCheckedAt time.Time
}

// Monitor はトラッキングセッションとは独立した周期でプロバイダの
// ヘルス状態を監視する。最後に観測した状態を保持し、照会に応答する。
type Monitor struct {
	checker ProviderChecker
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	status Status
}

// NewMonitor はMonitorの新しいインスタンスを生成する。
// timeoutはヘルスチェック1回あたりのタイムアウト。
func NewMonitor(checker ProviderChecker, logger *slog.Logger, timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Monitor{
		checker: checker,
		logger:  logger,
		timeout: timeout,
	}
}

// Current は最後に観測したヘルス状態を返す。
func (m *Monitor) Current() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// RunOnce はヘルスチェックを1回実行し、観測状態を更新する。
func (m *Monitor) RunOnce(ctx context.Context) Status {
	checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.checker.HealthCheck(checkCtx)
	cancel()

	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.status
	m.status = classify(err, prev, now)

	if err != nil {
		m.logger.Warn("プロバイダのヘルスチェックに失敗しました",
			slog.Bool("reachable", m.status.Reachable),
			slog.Bool("auth_valid", m.status.AuthValid),
			slog.String("error", err.Error()),
		)
	}
	return m.status
}

// classify はヘルスチェック結果を観測状態に変換する。
//   - 成功: 疎通・認証ともに有効。
//   - 認証失敗: 疎通は有効、認証は無効。
//   - 一時的な障害: 疎通は無効。認証状態は判定できないため前回の値を維持する。
//   - その他のエラー応答: プロバイダは応答しているため疎通は有効。
func classify(err error, prev Status, now time.Time) Status {
	status := Status{LastCheckedAt: now}
	if err == nil {
		status.Reachable = true
		status.AuthValid = true
		return status
	}

	perr, ok := model.AsProviderError(err)
	if !ok {
		status.Reachable = false
		status.AuthValid = prev.AuthValid
		return status
	}

	switch perr.Kind {
	case model.KindUnauthorized:
		status.Reachable = true
		status.AuthValid = false
	case model.KindTransient:
		status.Reachable = false
		status.AuthValid = prev.AuthValid
	default:
		status.Reachable = true
		status.AuthValid = prev.AuthValid
	}
	return status
}

// Start は指定間隔のティッカーで監視を起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("ヘルスモニターを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	m.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("ヘルスモニターを停止しました")
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}
