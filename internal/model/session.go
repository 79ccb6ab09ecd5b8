package model

import "time"

// SessionStatus はトラッキングセッションの状態を表す。
type SessionStatus string

const (
	// SessionStarting は初回ポーリングが完了していない初期状態。
	SessionStarting SessionStatus = "starting"
	// SessionActive は直近のポーリングが成功した状態。
	SessionActive SessionStatus = "active"
	// SessionDegraded は直近のポーリングが失敗したが閾値未満の状態。
	SessionDegraded SessionStatus = "degraded"
	// SessionStopped は明示的な停止または連続失敗による終端状態。
	SessionStopped SessionStatus = "stopped"
)

// SessionInfo はセッション一覧用の概要情報。
type SessionInfo struct {
	VideoID           string
	Status            SessionStatus
	Title             string
	ConsecutiveErrors int
	LastError         string
	LatestViewCount   int64
	SnapshotCount     int
	StartedAt         time.Time
	NextPollAt        time.Time
}
