package tracker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/viewtracker/internal/model"
)

// SessionRecorder はセッションとポーリングの観測値を記録するインターフェース。
// メトリクス収集層が実装する。nilの場合は記録しない。
type SessionRecorder interface {
	SetActiveSessions(count int)
	RecordPollOutcome(outcome string)
}

// ManagerConfig はManagerの設定パラメータ。
type ManagerConfig struct {
	// PollInterval は成功時のポーリング間隔。
	PollInterval time.Duration
	// ProviderTimeout はプロバイダ呼び出し1回あたりのタイムアウト。
	ProviderTimeout time.Duration
	// FailureThreshold は連続失敗によるセッション停止の閾値。
	FailureThreshold int
	// BackoffMaxFactor はバックオフ遅延の基本間隔に対する最大倍率。
	BackoffMaxFactor int
	// HistoryLimit はセッションごとに保持するスナップショット数の上限。
	HistoryLimit int
	// SessionRetention は停止済みセッションを保持する期間。
	SessionRetention time.Duration
}

// sessionEntry はセッション状態とそのポーリングループの組。
type sessionEntry struct {
	session *Session
	poller  *poller
}

// Manager は全トラッキングセッションのレジストリ。
// セッションの開始・停止・照会を排他制御付きで提供し、
// セッションごとに1つのポーリングループを起動する。
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	source   SnapshotSource
	logger   *slog.Logger
	recorder SessionRecorder
	cfg      ManagerConfig
	timeout  time.Duration

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// NewManager はManagerの新しいインスタンスを生成する。
// recorderはnil可（メトリクスを記録しない）。
func NewManager(source SnapshotSource, logger *slog.Logger, recorder SessionRecorder, cfg ManagerConfig) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 60 * time.Second
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions:   make(map[string]*sessionEntry),
		source:     source,
		logger:     logger,
		recorder:   recorder,
		cfg:        cfg,
		timeout:    cfg.ProviderTimeout,
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

// StartTracking は動画のトラッキングを開始する。
// 入力は共有URLまたは動画IDを受け付け、正規識別子に変換する。
// 同一動画の非停止セッションが既に存在する場合は新規開始せず、
// 既存セッションの識別子を返す（冪等）。停止済みセッションは再開始で置き換える。
func (m *Manager) StartTracking(input string) (string, bool, error) {
	videoID, err := model.NormalizeVideoID(input)
	if err != nil {
		return "", false, model.NewInvalidURLError(err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.sessions[videoID]; ok && entry.session.Status != model.SessionStopped {
		return videoID, false, nil
	}

	session := NewSession(videoID, SessionConfig{
		Interval:         m.cfg.PollInterval,
		FailureThreshold: m.cfg.FailureThreshold,
		BackoffMaxFactor: m.cfg.BackoffMaxFactor,
		HistoryLimit:     m.cfg.HistoryLimit,
	}, time.Now())

	m.sessions[videoID] = &sessionEntry{
		session: session,
		poller:  newPoller(m.rootCtx, m, videoID),
	}
	m.setActiveGaugeLocked()

	m.logger.Info("トラッキングセッションを開始しました",
		slog.String("video_id", videoID),
		slog.Duration("interval", m.cfg.PollInterval),
	)
	return videoID, true, nil
}

// StopTracking は動画のトラッキングを停止する。
// 進行中のプロバイダ呼び出しがあれば完了を待ってから停止する。
// 未知の動画に対してはセッション未検出エラーを返す。
func (m *Manager) StopTracking(videoID string) error {
	m.mu.Lock()
	entry, ok := m.sessions[videoID]
	if !ok {
		m.mu.Unlock()
		return model.NewSessionNotFoundError(videoID)
	}
	p := entry.poller
	m.mu.Unlock()

	// ポーリングループの停止はロック外で待つ（ループ内の状態反映と競合するため）
	if p != nil {
		p.stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.session.Status != model.SessionStopped {
		ApplyStop(entry.session, "", time.Now())
	}
	m.setActiveGaugeLocked()

	m.logger.Info("トラッキングセッションを停止しました",
		slog.String("video_id", videoID),
	)
	return nil
}

// Snapshot は動画の最新スナップショットを返す。
// セッションが存在しない場合はセッション未検出エラー、
// 初回ポーリングが未完了の場合はデータ未取得エラーを返す。
func (m *Manager) Snapshot(videoID string) (*model.VideoSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[videoID]
	if !ok {
		return nil, model.NewSessionNotFoundError(videoID)
	}
	latest := entry.session.Latest()
	if latest == nil {
		return nil, model.NewNoDataYetError(videoID)
	}
	snapshot := *latest
	return &snapshot, nil
}

// History は動画のスナップショット履歴を計測時刻の昇順で返す。
func (m *Manager) History(videoID string) ([]model.VideoSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[videoID]
	if !ok {
		return nil, model.NewSessionNotFoundError(videoID)
	}
	history := make([]model.VideoSnapshot, len(entry.session.History))
	copy(history, entry.session.History)
	return history, nil
}

// SessionStatus は動画のセッション概要を返す。
func (m *Manager) SessionStatus(videoID string) (*model.SessionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[videoID]
	if !ok {
		return nil, model.NewSessionNotFoundError(videoID)
	}
	info := entry.session.Info()
	return &info, nil
}

// ListSessions は全セッションの概要を動画ID順で返す。
func (m *Manager) ListSessions() []model.SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]model.SessionInfo, 0, len(m.sessions))
	for _, entry := range m.sessions {
		infos = append(infos, entry.session.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].VideoID < infos[j].VideoID
	})
	return infos
}

// PruneStopped は保持期間を超過した停止済みセッションをレジストリから削除する。
// 削除件数を返す。冪等: 削除対象がない場合でも安全に実行できる。
func (m *Manager) PruneStopped(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for videoID, entry := range m.sessions {
		s := entry.session
		if s.Status != model.SessionStopped {
			continue
		}
		if s.StoppedAt.IsZero() || now.Sub(s.StoppedAt) < m.cfg.SessionRetention {
			continue
		}
		delete(m.sessions, videoID)
		pruned++
	}
	return pruned
}

// Shutdown は全ポーリングループを停止し、進行中の呼び出しの完了を待つ。
func (m *Manager) Shutdown() {
	m.rootCancel()

	m.mu.RLock()
	pollers := make([]*poller, 0, len(m.sessions))
	for _, entry := range m.sessions {
		if entry.poller != nil {
			pollers = append(pollers, entry.poller)
		}
	}
	m.mu.RUnlock()

	for _, p := range pollers {
		<-p.done
	}
	m.logger.Info("全トラッキングセッションを停止しました",
		slog.Int("session_count", len(pollers)),
	)
}

// nextPollAt は次回ポーリング時刻を返す。
// セッションが存在しないか終端状態の場合はfalseを返す。
func (m *Manager) nextPollAt(videoID string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[videoID]
	if !ok || entry.session.Status == model.SessionStopped {
		return time.Time{}, false
	}
	return entry.session.NextPollAt, true
}

// applySuccess はポーリング成功をセッションに反映し、遷移後の状態を返す。
func (m *Manager) applySuccess(videoID string, snapshot *model.VideoSnapshot) model.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[videoID]
	if !ok {
		return ""
	}
	ApplySuccess(entry.session, snapshot, time.Now())
	m.recordOutcome("success")
	m.setActiveGaugeLocked()
	return entry.session.Status
}

// applyFailure はポーリング失敗をセッションに反映し、遷移後の状態を返す。
func (m *Manager) applyFailure(videoID string, perr *model.ProviderError) model.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[videoID]
	if !ok {
		return ""
	}
	ApplyFailure(entry.session, perr, time.Now())
	m.recordOutcome(string(perr.Kind))
	m.setActiveGaugeLocked()
	return entry.session.Status
}

// setActiveGaugeLocked は非停止セッション数をメトリクスに反映する。
// 呼び出し元がmuを保持していること。
func (m *Manager) setActiveGaugeLocked() {
	if m.recorder == nil {
		return
	}
	count := 0
	for _, entry := range m.sessions {
		if entry.session.Status != model.SessionStopped {
			count++
		}
	}
	m.recorder.SetActiveSessions(count)
}

// recordOutcome はポーリング結果をメトリクスに記録する。
func (m *Manager) recordOutcome(outcome string) {
	if m.recorder != nil {
		m.recorder.RecordPollOutcome(outcome)
	}
}
