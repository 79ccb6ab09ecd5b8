package tracker

import (
	"context"
	"log/slog"
	"time"
)

// Janitor は停止済みセッションの自動削除ジョブ。
// 保持期間を超過した停止済みセッションを定期的にレジストリから削除し、
// メモリ使用量の無制限な増加を防ぐ。
type Janitor struct {
	manager *Manager
	logger  *slog.Logger
}

// NewJanitor はJanitorの新しいインスタンスを生成する。
func NewJanitor(manager *Manager, logger *slog.Logger) *Janitor {
	return &Janitor{manager: manager, logger: logger}
}

// Run は保持期間を超過した停止済みセッションを1回削除する。
func (j *Janitor) Run(ctx context.Context) {
	start := time.Now()
	pruned := j.manager.PruneStopped(start)
	if pruned == 0 {
		return
	}
	j.logger.Info("停止済みセッションを削除しました",
		slog.Int("pruned_count", pruned),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}

// Start は指定間隔のティッカーで削除ジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
