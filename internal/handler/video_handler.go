package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hitoshi/viewtracker/internal/model"
)

const (
	// defaultUserVideoCount はユーザー投稿動画一覧のデフォルト取得件数。
	defaultUserVideoCount = 20
	// maxUserVideoCount はユーザー投稿動画一覧の最大取得件数。
	maxUserVideoCount = 50
)

// ProviderServiceInterface は単発取得ハンドラーが必要とするプロバイダインターフェース。
type ProviderServiceInterface interface {
	// FetchSnapshot は共有URLまたは動画IDからスナップショットを取得する。
	FetchSnapshot(ctx context.Context, videoURLOrID string) (*model.VideoSnapshot, error)
	// FetchUserProfile はsec_user_idからユーザープロフィールを取得する。
	FetchUserProfile(ctx context.Context, secUserID string) (*model.UserProfile, error)
	// FetchUserVideos はユーザーの投稿動画一覧をページ単位で取得する。
	FetchUserVideos(ctx context.Context, userID string, cursor int64, count int) (*model.VideoPage, error)
}

// VideoHandler はトラッキングを伴わない単発取得のHTTPハンドラー。
type VideoHandler struct {
	provider  ProviderServiceInterface
	validator URLValidator
}

// NewVideoHandler はVideoHandlerを生成する。
func NewVideoHandler(provider ProviderServiceInterface, validator URLValidator) *VideoHandler {
	return &VideoHandler{
		provider:  provider,
		validator: validator,
	}
}

// getVideoInfoRequest は動画情報取得リクエストのボディ。
type getVideoInfoRequest struct {
	VideoURL string `json:"video_url"`
}

// searchUserRequest はユーザー検索リクエストのボディ。
type searchUserRequest struct {
	SecUserID string `json:"sec_user_id"`
}

// getUserVideosRequest はユーザー投稿動画一覧リクエストのボディ。
type getUserVideosRequest struct {
	UserID    string `json:"user_id"`
	MaxCursor int64  `json:"max_cursor"`
	Count     int    `json:"count"`
}

// userProfileResponse はユーザープロフィールのAPIレスポンス。
type userProfileResponse struct {
	SecUserID      string `json:"sec_user_id"`
	Nickname       string `json:"nickname"`
	UniqueID       string `json:"unique_id"`
	FollowerCount  int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	TotalFavorited int64  `json:"total_favorited"`
	VideoCount     int64  `json:"video_count"`
	Signature      string `json:"signature,omitempty"`
	IPLocation     string `json:"ip_location,omitempty"`
	AvatarURL      string `json:"avatar_url,omitempty"`
}

// userVideosResponse はユーザー投稿動画一覧のAPIレスポンス。
type userVideosResponse struct {
	Videos     []snapshotResponse `json:"videos"`
	HasMore    bool               `json:"has_more"`
	NextCursor int64              `json:"next_cursor"`
}

// GetVideoInfo はトラッキングを伴わない単発のスナップショット取得を処理する。
// POST /api/get_video_info
func (h *VideoHandler) GetVideoInfo(w http.ResponseWriter, r *http.Request) {
	var req getVideoInfoRequest
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
	if strings.Contains(req.VideoURL, "://") {
		if err := h.validator.ValidateURL(req.VideoURL); err != nil {
			writeAPIErrorResponse(w, http.StatusForbidden, model.NewSSRFBlockedError())
			return
		}
	}

	snapshot, err := h.provider.FetchSnapshot(r.Context(), req.VideoURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(snapshot))
}

// SearchUser はユーザープロフィールの取得を処理する。
// POST /api/search_user
func (h *VideoHandler) SearchUser(w http.ResponseWriter, r *http.Request) {
	var req searchUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.SecUserID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_USER_ID",
			Message:  "ユーザーIDが空です。",
			Category: "validation",
			Action:   "sec_user_idを指定してください。",
		})
		return
	}

	profile, err := h.provider.FetchUserProfile(r.Context(), req.SecUserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserProfileResponse(profile))
}

// GetUserVideos はユーザー投稿動画一覧の取得を処理する。
// POST /api/get_user_videos
func (h *VideoHandler) GetUserVideos(w http.ResponseWriter, r *http.Request) {
	var req getUserVideosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.UserID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_USER_ID",
			Message:  "ユーザーIDが空です。",
			Category: "validation",
			Action:   "user_idを指定してください。",
		})
		return
	}

	count := req.Count
	if count <= 0 {
		count = defaultUserVideoCount
	}
	if count > maxUserVideoCount {
		count = maxUserVideoCount
	}

	page, err := h.provider.FetchUserVideos(r.Context(), req.UserID, req.MaxCursor, count)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := userVideosResponse{
		Videos:     make([]snapshotResponse, len(page.Videos)),
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
	}
	for i := range page.Videos {
		resp.Videos[i] = toSnapshotResponse(&page.Videos[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// toUserProfileResponse はドメインのUserProfileをAPIレスポンス型に変換する。
func toUserProfileResponse(p *model.UserProfile) userProfileResponse {
	return userProfileResponse{
		SecUserID:      p.SecUserID,
		Nickname:       p.Nickname,
		UniqueID:       p.UniqueID,
		FollowerCount:  p.FollowerCount,
		FollowingCount: p.FollowingCount,
		TotalFavorited: p.TotalFavorited,
		VideoCount:     p.VideoCount,
		Signature:      p.Signature,
		IPLocation:     p.IPLocation,
		AvatarURL:      p.AvatarURL,
	}
}
