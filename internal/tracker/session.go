// Package tracker は動画統計のトラッキングセッション管理を提供する。
// セッションの状態遷移、ポーリングループ、リトライ/バックオフ戦略を含む。
package tracker

import (
	"fmt"
	"time"

	"github.com/hitoshi/viewtracker/internal/model"
)

const (
	// defaultFailureThreshold は連続失敗によるセッション停止の閾値。
	defaultFailureThreshold = 5
	// defaultBackoffMaxFactor はバックオフ遅延の基本間隔に対する最大倍率。
	defaultBackoffMaxFactor = 10
	// defaultHistoryLimit はセッションごとに保持するスナップショットの上限。
	defaultHistoryLimit = 1000
)

// SessionConfig はセッションの動作パラメータ。
type SessionConfig struct {
	// Interval は成功時のポーリング間隔。
	Interval time.Duration
	// FailureThreshold は連続失敗によるセッション停止の閾値。0以下はデフォルト値。
	FailureThreshold int
	// BackoffMaxFactor はバックオフ遅延の最大倍率。0以下はデフォルト値。
	BackoffMaxFactor int
	// HistoryLimit は保持するスナップショット数の上限。0以下はデフォルト値。
	HistoryLimit int
}

// Session は1つの動画に対するトラッキングセッションの状態。
// 状態遷移はApply*関数でのみ行い、呼び出し元が排他制御を担う。
type Session struct {
	VideoID           string
	Status            model.SessionStatus
	Config            SessionConfig
	ConsecutiveErrors int
	// BackoffDelay は次回ポーリングまでの現在の遅延。基本間隔から開始し、
	// 認証・入力不正の失敗で倍増する。成功でリセットされるまで減少しない。
	BackoffDelay time.Duration
	NextPollAt   time.Time
	LastError    string
	StartedAt    time.Time
	StoppedAt    time.Time
	History      []model.VideoSnapshot
}

// NewSession は初期状態（starting）のセッションを生成する。
// 初回ポーリングは即時にスケジュールされる。
func NewSession(videoID string, cfg SessionConfig, now time.Time) *Session {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.BackoffMaxFactor <= 0 {
		cfg.BackoffMaxFactor = defaultBackoffMaxFactor
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Session{
		VideoID:      videoID,
		Status:       model.SessionStarting,
		Config:       cfg,
		BackoffDelay: cfg.Interval,
		NextPollAt:   now,
		StartedAt:    now,
	}
}

// maxBackoff はこのセッションのバックオフ遅延の上限を返す。
func (s *Session) maxBackoff() time.Duration {
	return time.Duration(s.Config.BackoffMaxFactor) * s.Config.Interval
}

// ApplySuccess はポーリング成功時の状態遷移を適用する。
// 連続エラー回数とバックオフ遅延をリセットし、スナップショットを履歴に追加して
// 基本間隔で次回ポーリングをスケジュールする。
func ApplySuccess(s *Session, snapshot *model.VideoSnapshot, now time.Time) {
	s.Status = model.SessionActive
	s.ConsecutiveErrors = 0
	s.BackoffDelay = s.Config.Interval
	s.LastError = ""
	appendSnapshot(s, snapshot)
	s.NextPollAt = now.Add(s.Config.Interval)
}

// ApplyFailure はポーリング失敗時の状態遷移を適用する。
//   - レート制限: 閾値にカウントせず、max(Retry-Afterヒント, 現在の遅延)で再スケジュールする。
//   - 認証失敗・入力不正: バックオフ遅延を倍増（上限あり）して再スケジュールする。
//   - 一時的な障害・不正レスポンス・対象未検出: 現在の遅延のまま再スケジュールする。
//
// レート制限以外の失敗は連続エラー回数をインクリメントし、
// 閾値に達した場合はセッションを停止する。バックオフ遅延は成功まで減少しない。
func ApplyFailure(s *Session, perr *model.ProviderError, now time.Time) {
	s.LastError = perr.Error()

	if perr.Kind == model.KindRateLimited {
		delay := s.BackoffDelay
		if perr.RetryAfter > delay {
			delay = perr.RetryAfter
		}
		s.NextPollAt = now.Add(delay)
		return
	}

	s.ConsecutiveErrors++
	if s.ConsecutiveErrors >= s.Config.FailureThreshold {
		ApplyStop(s, fmt.Sprintf("連続失敗が%d回に達したためトラッキングを停止しました: %s",
			s.ConsecutiveErrors, perr.Error()), now)
		return
	}

	if s.Status != model.SessionStarting {
		s.Status = model.SessionDegraded
	}

	switch perr.Kind {
	case model.KindUnauthorized, model.KindInvalidInput:
		s.BackoffDelay *= 2
		if max := s.maxBackoff(); s.BackoffDelay > max {
			s.BackoffDelay = max
		}
	}
	s.NextPollAt = now.Add(s.BackoffDelay)
}

// ApplyStop はセッションを終端状態に遷移させる。
// 停止理由をLastErrorに記録する。明示的な停止の場合reasonは空でよい。
func ApplyStop(s *Session, reason string, now time.Time) {
	s.Status = model.SessionStopped
	if reason != "" {
		s.LastError = reason
	}
	s.StoppedAt = now
}

// appendSnapshot はスナップショットを履歴に追加する。
// 履歴は計測時刻の昇順を維持し、上限を超えた場合は最古のものから破棄する。
func appendSnapshot(s *Session, snapshot *model.VideoSnapshot) {
	if n := len(s.History); n > 0 && snapshot.CapturedAt.Before(s.History[n-1].CapturedAt) {
		// 時刻が逆行するスナップショットは破棄する（履歴は追記専用）
		return
	}
	s.History = append(s.History, *snapshot)
	if over := len(s.History) - s.Config.HistoryLimit; over > 0 {
		s.History = s.History[over:]
	}
}

// Latest は最新のスナップショットを返す。履歴が空の場合はnilを返す。
func (s *Session) Latest() *model.VideoSnapshot {
	if len(s.History) == 0 {
		return nil
	}
	return &s.History[len(s.History)-1]
}

// Info はセッション一覧用の概要情報を返す。
func (s *Session) Info() model.SessionInfo {
	info := model.SessionInfo{
		VideoID:           s.VideoID,
		Status:            s.Status,
		ConsecutiveErrors: s.ConsecutiveErrors,
		LastError:         s.LastError,
		SnapshotCount:     len(s.History),
		StartedAt:         s.StartedAt,
		NextPollAt:        s.NextPollAt,
	}
	if latest := s.Latest(); latest != nil {
		info.Title = latest.Title
		info.LatestViewCount = latest.ViewCount
	}
	return info
}
