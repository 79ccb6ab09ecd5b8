package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/hitoshi/viewtracker/internal/model"
)

func TestGetVideoInfo_Success(t *testing.T) {
	provider := &mockProvider{
		fetchSnapshotFn: func(ctx context.Context, v string) (*model.VideoSnapshot, error) {
			return &model.VideoSnapshot{
				VideoID:   "7318518857994222633",
				ViewCount: 5000,
				Music:     &model.MusicInfo{Title: "BGM", Author: "作曲者"},
			}, nil
		},
	}
	router := newTestRouter(t, testDeps{provider: provider})

	w := postJSON(router, "/api/get_video_info", `{"video_url": "https://v.douyin.com/iJwXmBN/"}`)
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d", w.Result().StatusCode)
	}

	var resp snapshotResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.ViewCount != 5000 {
		t.Errorf("ViewCount = %d", resp.ViewCount)
	}
	if resp.Music == nil || resp.Music.Title != "BGM" {
		t.Errorf("楽曲情報が含まれるべき: %+v", resp.Music)
	}
}

func TestGetVideoInfo_ProviderRateLimited(t *testing.T) {
	provider := &mockProvider{
		fetchSnapshotFn: func(ctx context.Context, v string) (*model.VideoSnapshot, error) {
			return nil, model.NewRateLimitedError(30 * time.Second)
		},
	}
	router := newTestRouter(t, testDeps{provider: provider})

	w := postJSON(router, "/api/get_video_info", `{"video_url": "7318518857994222633"}`)
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("プロバイダのレート制限は429を返すべき: %d", w.Result().StatusCode)
	}
	if got := w.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-Afterヘッダーが伝搬されるべき: %q", got)
	}
	if body := decodeError(t, w); body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q", body.Code)
	}
}

func TestGetVideoInfo_ProviderErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        *model.ProviderError
		wantStatus int
		wantCode   string
	}{
		{"認証失敗", model.NewUnauthorizedError(401), http.StatusBadGateway, model.ErrCodeUnauthorized},
		{"対象未検出", model.NewNotFoundError("not found"), http.StatusNotFound, model.ErrCodeVideoNotFound},
		{"入力不正", model.NewInvalidInputError(400, "bad url"), http.StatusBadRequest, model.ErrCodeInvalidURL},
		{"一時的な障害", model.NewTransientStatusError(503), http.StatusBadGateway, model.ErrCodeProviderUnavailable},
		{"不正レスポンス", model.NewMalformedResponseError(nil), http.StatusBadGateway, model.ErrCodeMalformedResponse},
	}

	for _, tc := range cases {
		provider := &mockProvider{
			fetchSnapshotFn: func(ctx context.Context, v string) (*model.VideoSnapshot, error) {
				return nil, tc.err
			},
		}
		router := newTestRouter(t, testDeps{provider: provider})

		w := postJSON(router, "/api/get_video_info", `{"video_url": "7318518857994222633"}`)
		if w.Result().StatusCode != tc.wantStatus {
			t.Errorf("%s: status = %d, want %d", tc.name, w.Result().StatusCode, tc.wantStatus)
		}
		if body := decodeError(t, w); body.Code != tc.wantCode {
			t.Errorf("%s: code = %q, want %q", tc.name, body.Code, tc.wantCode)
		}
	}
}

func TestSearchUser_Success(t *testing.T) {
	provider := &mockProvider{
		fetchUserProfileFn: func(ctx context.Context, secUserID string) (*model.UserProfile, error) {
			return &model.UserProfile{
				SecUserID:     secUserID,
				Nickname:      "ユーザー",
				FollowerCount: 12345,
			}, nil
		},
	}
	router := newTestRouter(t, testDeps{provider: provider})

	w := postJSON(router, "/api/search_user", `{"sec_user_id": "MS4wLjABAAAA_test"}`)
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d", w.Result().StatusCode)
	}

	var resp userProfileResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.SecUserID != "MS4wLjABAAAA_test" || resp.FollowerCount != 12345 {
		t.Errorf("レスポンスが不正: %+v", resp)
	}
}

func TestSearchUser_EmptyUserID(t *testing.T) {
	router := newTestRouter(t, testDeps{})

	w := postJSON(router, "/api/search_user", `{"sec_user_id": ""}`)
	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("空のユーザーIDは400を返すべき: %d", w.Result().StatusCode)
	}
}

func TestGetUserVideos_CountDefaultsAndCap(t *testing.T) {
	var gotCount int
	provider := &mockProvider{
		fetchUserVideosFn: func(ctx context.Context, userID string, cursor int64, count int) (*model.VideoPage, error) {
			gotCount = count
			return &model.VideoPage{Videos: []model.VideoSnapshot{}, HasMore: false}, nil
		},
	}
	router := newTestRouter(t, testDeps{provider: provider})

	postJSON(router, "/api/get_user_videos", `{"user_id": "MS4wLjABAAAA_x"}`)
	if gotCount != defaultUserVideoCount {
		t.Errorf("件数未指定はデフォルト値を使うべき: %d", gotCount)
	}

	postJSON(router, "/api/get_user_videos", `{"user_id": "MS4wLjABAAAA_x", "count": 500}`)
	if gotCount != maxUserVideoCount {
		t.Errorf("件数は上限で頭打ちになるべき: %d", gotCount)
	}
}

func TestGetUserVideos_PassesCursor(t *testing.T) {
	var gotCursor int64
	provider := &mockProvider{
		fetchUserVideosFn: func(ctx context.Context, userID string, cursor int64, count int) (*model.VideoPage, error) {
			gotCursor = cursor
			return &model.VideoPage{HasMore: true, NextCursor: 1703900001}, nil
		},
	}
	router := newTestRouter(t, testDeps{provider: provider})

	w := postJSON(router, "/api/get_user_videos", `{"user_id": "MS4wLjABAAAA_x", "max_cursor": 1703900000}`)
	if gotCursor != 1703900000 {
		t.Errorf("カーソルが渡されるべき: %d", gotCursor)
	}

	var resp userVideosResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if !resp.HasMore || resp.NextCursor != 1703900001 {
		t.Errorf("ページング情報が返されるべき: %+v", resp)
	}
}
