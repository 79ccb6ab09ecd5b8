package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/viewtracker/internal/model"
)

// SnapshotSource は動画スナップショットの取得インターフェース。
// provider.Serviceが実装する。
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, videoID string) (*model.VideoSnapshot, error)
}

// poller は1セッションにつき1つ起動されるポーリングループ。
// ループ内で取得と状態遷移を逐次実行するため、同一動画に対する
// プロバイダ呼び出しは常に高々1つしか進行しない。
type poller struct {
	videoID string
	manager *Manager
	cancel  context.CancelFunc
	done    chan struct{}
}

// newPoller はポーリングループを起動する。
func newPoller(parent context.Context, m *Manager, videoID string) *poller {
	ctx, cancel := context.WithCancel(parent)
	p := &poller{
		videoID: videoID,
		manager: m,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go p.run(ctx)
	return p
}

// stop はループに停止を要求し、進行中のプロバイダ呼び出しの完了を待つ。
func (p *poller) stop() {
	p.cancel()
	<-p.done
}

// run はセッションが終端状態になるか停止要求があるまでポーリングを続ける。
func (p *poller) run(ctx context.Context) {
	defer close(p.done)

	for {
		next, ok := p.manager.nextPollAt(p.videoID)
		if !ok {
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !p.pollOnce(ctx) {
			return
		}
	}
}

// pollOnce は1回のポーリングを実行し、結果をセッションに反映する。
// セッションが継続可能な場合はtrueを返す。
func (p *poller) pollOnce(ctx context.Context) bool {
	m := p.manager

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	snapshot, err := m.source.FetchSnapshot(callCtx, p.videoID)
	cancel()

	if ctx.Err() != nil {
		// 停止要求による中断は失敗として数えない
		return false
	}

	if err != nil {
		perr, ok := model.AsProviderError(err)
		if !ok {
			perr = model.NewTransientError(err)
		}
		status := m.applyFailure(p.videoID, perr)
		m.logger.Warn("ポーリングに失敗しました",
			slog.String("video_id", p.videoID),
			slog.String("kind", string(perr.Kind)),
			slog.String("status", string(status)),
			slog.String("error", perr.Error()),
		)
		return status != model.SessionStopped && status != ""
	}

	status := m.applySuccess(p.videoID, snapshot)
	m.logger.Debug("ポーリングが完了しました",
		slog.String("video_id", p.videoID),
		slog.Int64("view_count", snapshot.ViewCount),
	)
	return status != model.SessionStopped && status != ""
}
