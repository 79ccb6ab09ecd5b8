package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/viewtracker/internal/model"
)

// TrackingManagerInterface はトラッキングハンドラーが必要とするセッション管理インターフェース。
type TrackingManagerInterface interface {
	// StartTracking は動画のトラッキングを開始する。冪等。
	StartTracking(input string) (videoID string, created bool, err error)
	// StopTracking は動画のトラッキングを停止する。
	StopTracking(videoID string) error
	// Snapshot は最新のスナップショットを返す。
	Snapshot(videoID string) (*model.VideoSnapshot, error)
	// History はスナップショット履歴を計測時刻の昇順で返す。
	History(videoID string) ([]model.VideoSnapshot, error)
	// SessionStatus はセッション概要を返す。
	SessionStatus(videoID string) (*model.SessionInfo, error)
	// ListSessions は全セッションの概要を返す。
	ListSessions() []model.SessionInfo
}

// URLValidator は外部URLの安全性検証インターフェース。
// security.URLGuardServiceが実装する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// TrackingHandler はトラッキングセッション管理のHTTPハンドラー。
type TrackingHandler struct {
	manager   TrackingManagerInterface
	validator URLValidator
}

// NewTrackingHandler はTrackingHandlerを生成する。
func NewTrackingHandler(manager TrackingManagerInterface, validator URLValidator) *TrackingHandler {
	return &TrackingHandler{
		manager:   manager,
		validator: validator,
	}
}

// trackVideoRequest はトラッキング開始リクエストのボディ。
type trackVideoRequest struct {
	VideoURL string `json:"video_url"`
}

// trackVideoResponse はトラッキング開始レスポンス。
type trackVideoResponse struct {
	VideoID string              `json:"video_id"`
	Created bool                `json:"created"`
	Session sessionInfoResponse `json:"session"`
}

// sessionInfoResponse はセッション概要のAPIレスポンス。
type sessionInfoResponse struct {
	VideoID           string    `json:"video_id"`
	Status            string    `json:"status"`
	Title             string    `json:"title,omitempty"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastError         string    `json:"last_error,omitempty"`
	LatestViewCount   int64     `json:"latest_view_count"`
	SnapshotCount     int       `json:"snapshot_count"`
	StartedAt         time.Time `json:"started_at"`
	NextPollAt        time.Time `json:"next_poll_at"`
}

// snapshotResponse はスナップショットのAPIレスポンス。
type snapshotResponse struct {
	VideoID      string     `json:"video_id"`
	CapturedAt   time.Time  `json:"captured_at"`
	ViewCount    int64      `json:"view_count"`
	LikeCount    int64      `json:"like_count"`
	CommentCount int64      `json:"comment_count"`
	ShareCount   int64      `json:"share_count"`
	CollectCount int64      `json:"collect_count"`
	Title        string     `json:"title,omitempty"`
	AuthorName   string     `json:"author_name,omitempty"`
	AuthorUID    string     `json:"author_uid,omitempty"`
	CoverURL     string     `json:"cover_url,omitempty"`
	DurationMs   int64      `json:"duration_ms,omitempty"`
	CreateTime   int64      `json:"create_time,omitempty"`
	Music        *musicInfo `json:"music,omitempty"`
}

// musicInfo は楽曲情報のAPIレスポンス。
type musicInfo struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	PlayURL string `json:"play_url,omitempty"`
}

// historyResponse はスナップショット履歴のAPIレスポンス。
type historyResponse struct {
	VideoID string             `json:"video_id"`
	Count   int                `json:"count"`
	History []snapshotResponse `json:"history"`
}

// sessionListResponse はセッション一覧のAPIレスポンス。
type sessionListResponse struct {
	Sessions []sessionInfoResponse `json:"sessions"`
}

// StartTracking はトラッキング開始を処理する。
// POST /api/track_video
func (h *TrackingHandler) StartTracking(w http.ResponseWriter, r *http.Request) {
	var req trackVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.VideoURL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	// URL形式の入力は外部取得前に安全性を検証する
	if strings.Contains(req.VideoURL, "://") {
		if err := h.validator.ValidateURL(req.VideoURL); err != nil {
			writeAPIErrorResponse(w, http.StatusForbidden, model.NewSSRFBlockedError())
			return
		}
	}

	videoID, created, err := h.manager.StartTracking(req.VideoURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	info, err := h.manager.SessionStatus(videoID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	statusCode := http.StatusOK
	if created {
		statusCode = http.StatusCreated
	}
	writeJSON(w, statusCode, trackVideoResponse{
		VideoID: videoID,
		Created: created,
		Session: toSessionInfoResponse(*info),
	})
}

// StopTracking はトラッキング停止を処理する。
// DELETE /api/track_video/{id}
func (h *TrackingHandler) StopTracking(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	if err := h.manager.StopTracking(videoID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSnapshot は最新スナップショットの取得を処理する。
// GET /api/track_video/{id}
func (h *TrackingHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	snapshot, err := h.manager.Snapshot(videoID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(snapshot))
}

// GetHistory はスナップショット履歴の取得を処理する。
// GET /api/track_video/{id}/history
func (h *TrackingHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	history, err := h.manager.History(videoID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := historyResponse{
		VideoID: videoID,
		Count:   len(history),
		History: make([]snapshotResponse, len(history)),
	}
	for i := range history {
		resp.History[i] = toSnapshotResponse(&history[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSessions はセッション一覧の取得を処理する。
// GET /api/sessions
func (h *TrackingHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	infos := h.manager.ListSessions()

	resp := sessionListResponse{
		Sessions: make([]sessionInfoResponse, len(infos)),
	}
	for i, info := range infos {
		resp.Sessions[i] = toSessionInfoResponse(info)
	}
	writeJSON(w, http.StatusOK, resp)
}

// toSessionInfoResponse はドメインのSessionInfoをAPIレスポンス型に変換する。
func toSessionInfoResponse(info model.SessionInfo) sessionInfoResponse {
	return sessionInfoResponse{
		VideoID:           info.VideoID,
		Status:            string(info.Status),
		Title:             info.Title,
		ConsecutiveErrors: info.ConsecutiveErrors,
		LastError:         info.LastError,
		LatestViewCount:   info.LatestViewCount,
		SnapshotCount:     info.SnapshotCount,
		StartedAt:         info.StartedAt,
		NextPollAt:        info.NextPollAt,
	}
}

// toSnapshotResponse はドメインのVideoSnapshotをAPIレスポンス型に変換する。
func toSnapshotResponse(s *model.VideoSnapshot) snapshotResponse {
	resp := snapshotResponse{
		VideoID:      s.VideoID,
		CapturedAt:   s.CapturedAt,
		ViewCount:    s.ViewCount,
		LikeCount:    s.LikeCount,
		CommentCount: s.CommentCount,
		ShareCount:   s.ShareCount,
		CollectCount: s.CollectCount,
		Title:        s.Title,
		AuthorName:   s.AuthorName,
		AuthorUID:    s.AuthorUID,
		CoverURL:     s.CoverURL,
		DurationMs:   s.DurationMs,
		CreateTime:   s.CreateTime,
	}
	if s.Music != nil {
		resp.Music = &musicInfo{
			Title:   s.Music.Title,
			Author:  s.Music.Author,
			PlayURL: s.Music.PlayURL,
		}
	}
	return resp
}
