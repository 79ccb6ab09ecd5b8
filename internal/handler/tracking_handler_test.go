package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/viewtracker/internal/health"
	"github.com/hitoshi/viewtracker/internal/middleware"
	"github.com/hitoshi/viewtracker/internal/model"
)

// mockManager はテスト用のTrackingManagerInterface実装。
type mockManager struct {
	startTrackingFn func(input string) (string, bool, error)
	stopTrackingFn  func(videoID string) error
	snapshotFn      func(videoID string) (*model.VideoSnapshot, error)
	historyFn       func(videoID string) ([]model.VideoSnapshot, error)
	sessionStatusFn func(videoID string) (*model.SessionInfo, error)
	listSessionsFn  func() []model.SessionInfo
}

func (m *mockManager) StartTracking(input string) (string, bool, error) {
	return m.startTrackingFn(input)
}
func (m *mockManager) StopTracking(videoID string) error { return m.stopTrackingFn(videoID) }
func (m *mockManager) Snapshot(videoID string) (*model.VideoSnapshot, error) {
	return m.snapshotFn(videoID)
}
func (m *mockManager) History(videoID string) ([]model.VideoSnapshot, error) {
	return m.historyFn(videoID)
}
func (m *mockManager) SessionStatus(videoID string) (*model.SessionInfo, error) {
	return m.sessionStatusFn(videoID)
}
func (m *mockManager) ListSessions() []model.SessionInfo { return m.listSessionsFn() }

// mockProvider はテスト用のProviderServiceInterface実装。
type mockProvider struct {
	fetchSnapshotFn    func(ctx context.Context, videoURLOrID string) (*model.VideoSnapshot, error)
	fetchUserProfileFn func(ctx context.Context, secUserID string) (*model.UserProfile, error)
	fetchUserVideosFn  func(ctx context.Context, userID string, cursor int64, count int) (*model.VideoPage, error)
}

func (m *mockProvider) FetchSnapshot(ctx context.Context, v string) (*model.VideoSnapshot, error) {
	return m.fetchSnapshotFn(ctx, v)
}
func (m *mockProvider) FetchUserProfile(ctx context.Context, s string) (*model.UserProfile, error) {
	return m.fetchUserProfileFn(ctx, s)
}
func (m *mockProvider) FetchUserVideos(ctx context.Context, u string, c int64, n int) (*model.VideoPage, error) {
	return m.fetchUserVideosFn(ctx, u, c, n)
}

// mockValidator はテスト用のURLValidator実装。
type mockValidator struct {
	validateURLFn func(rawURL string) error
}

func (m *mockValidator) ValidateURL(rawURL string) error {
	if m.validateURLFn == nil {
		return nil
	}
	return m.validateURLFn(rawURL)
}

// mockMonitor はテスト用のHealthMonitorInterface実装。
type mockMonitor struct {
	currentFn func() health.Status
}

func (m *mockMonitor) Current() health.Status { return m.currentFn() }

type testDeps struct {
	manager   *mockManager
	provider  *mockProvider
	validator *mockValidator
	monitor   *mockMonitor
}

// newTestRouter はテスト用のルーターを構築する。
func newTestRouter(t *testing.T, deps testDeps) http.Handler {
	t.Helper()

	if deps.manager == nil {
		deps.manager = &mockManager{}
	}
	if deps.provider == nil {
		deps.provider = &mockProvider{}
	}
	if deps.validator == nil {
		deps.validator = &mockValidator{}
	}
	if deps.monitor == nil {
		deps.monitor = &mockMonitor{
			currentFn: func() health.Status { return health.Status{} },
		}
	}

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Inf,
		GeneralBurst:    1,
		TrackingRate:    rate.Inf,
		TrackingBurst:   1,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		CORSAllowedOrigin: "http://localhost:5173",
		RateLimiter:       rl,
		Tracking:          deps.manager,
		Provider:          deps.provider,
		Validator:         deps.validator,
		Health:            deps.monitor,
	})
}

func postJSON(handler http.Handler, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apiErrorResponse {
	t.Helper()
	var body apiErrorResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("エラーレスポンスのデコードに失敗: %v", err)
	}
	return body
}

func TestStartTracking_Created(t *testing.T) {
	manager := &mockManager{
		startTrackingFn: func(input string) (string, bool, error) {
			return "7318518857994222633", true, nil
		},
		sessionStatusFn: func(videoID string) (*model.SessionInfo, error) {
			return &model.SessionInfo{VideoID: videoID, Status: model.SessionStarting}, nil
		},
	}
	router := newTestRouter(t, testDeps{manager: manager})

	w := postJSON(router, "/api/track_video", `{"video_url": "https://v.douyin.com/iJwXmBN/"}`)
	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("新規セッションは201を返すべき: %d", w.Result().StatusCode)
	}

	var resp trackVideoResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.VideoID != "7318518857994222633" || !resp.Created {
		t.Errorf("レスポンスが不正: %+v", resp)
	}
	if resp.Session.Status != "starting" {
		t.Errorf("セッション概要が含まれるべき: %+v", resp.Session)
	}
}

func TestStartTracking_IdempotentReturns200(t *testing.T) {
	manager := &mockManager{
		startTrackingFn: func(input string) (string, bool, error) {
			return "7318518857994222633", false, nil
		},
		sessionStatusFn: func(videoID string) (*model.SessionInfo, error) {
			return &model.SessionInfo{VideoID: videoID, Status: model.SessionActive}, nil
		},
	}
	router := newTestRouter(t, testDeps{manager: manager})

	w := postJSON(router, "/api/track_video", `{"video_url": "7318518857994222633"}`)
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("既存セッションへの開始要求は200を返すべき: %d", w.Result().StatusCode)
	}
}

func TestStartTracking_InvalidBody(t *testing.T) {
	router := newTestRouter(t, testDeps{})

	w := postJSON(router, "/api/track_video", `not json`)
	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("不正なボディは400を返すべき: %d", w.Result().StatusCode)
	}
}

func TestStartTracking_EmptyURL(t *testing.T) {
	router := newTestRouter(t, testDeps{})

	w := postJSON(router, "/api/track_video", `{"video_url": ""}`)
	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("空URLは400を返すべき: %d", w.Result().StatusCode)
	}
	if body := decodeError(t, w); body.Code != model.ErrCodeInvalidURL {
		t.Errorf("code = %q", body.Code)
	}
}

func TestStartTracking_SSRFBlocked(t *testing.T) {
	validator := &mockValidator{
		validateURLFn: func(rawURL string) error {
			return model.NewSSRFBlockedError()
		},
	}
	router := newTestRouter(t, testDeps{validator: validator})

	w := postJSON(router, "/api/track_video", `{"video_url": "http://169.254.169.254/latest/meta-data/"}`)
	if w.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("ブロック対象URLは403を返すべき: %d", w.Result().StatusCode)
	}
	if body := decodeError(t, w); body.Code != model.ErrCodeSSRFBlocked {
		t.Errorf("code = %q", body.Code)
	}
}

func TestStopTracking_Success(t *testing.T) {
	var stoppedID string
	manager := &mockManager{
		stopTrackingFn: func(videoID string) error {
			stoppedID = videoID
			return nil
		},
	}
	router := newTestRouter(t, testDeps{manager: manager})

	req := httptest.NewRequest(http.MethodDelete, "/api/track_video/7318518857994222633", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("停止成功は204を返すべき: %d", w.Result().StatusCode)
	}
	if stoppedID != "7318518857994222633" {
		t.Errorf("パスパラメータのIDが渡されるべき: %q", stoppedID)
	}
}

func TestStopTracking_Unknown(t *testing.T) {
	manager := &mockManager{
		stopTrackingFn: func(videoID string) error {
			return model.NewSessionNotFoundError(videoID)
		},
	}
	router := newTestRouter(t, testDeps{manager: manager})

	req := httptest.NewRequest(http.MethodDelete, "/api/track_video/9999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("未知の動画の停止は404を返すべき: %d", w.Result().StatusCode)
	}
	if body := decodeError(t, w); body.Code != model.ErrCodeSessionNotFound {
		t.Errorf("code = %q", body.Code)
	}
}

func TestGetSnapshot_Success(t *testing.T) {
	capturedAt := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	manager := &mockManager{
		snapshotFn: func(videoID string) (*model.VideoSnapshot, error) {
			return &model.VideoSnapshot{
				VideoID:    videoID,
				CapturedAt: capturedAt,
				ViewCount:  12345,
				Title:      "タイトル",
			}, nil
		},
	}
	router := newTestRouter(t, testDeps{manager: manager})

	req := httptest.NewRequest(http.MethodGet, "/api/track_video/7318518857994222633", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d", w.Result().StatusCode)
	}
	var resp snapshotResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.ViewCount != 12345 || resp.Title != "タイトル" {
		t.Errorf("レスポンスが不正: %+v", resp)
	}
}

func TestGetSnapshot_NoDataYet(t *testing.T) {
	manager := &mockManager{
		snapshotFn: func(videoID string) (*model.VideoSnapshot, error) {
			return nil, model.NewNoDataYetError(videoID)
		},
	}
	router := newTestRouter(t, testDeps{manager: manager})

	req := httptest.NewRequest(http.MethodGet, "/api/track_video/123", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusAccepted {
		t.Fatalf("データ未取得は202を返すべき: %d", w.Result().StatusCode)
	}
	if body := decodeError(t, w); body.Code != model.ErrCodeNoDataYet {
		t.Errorf("code = %q", body.Code)
	}
}

func TestGetHistory_ReturnsOrderedList(t *testing.T) {
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	manager := &mockManager{
		historyFn: func(videoID string) ([]model.VideoSnapshot, error) {
			return []model.VideoSnapshot{
				{VideoID: videoID, CapturedAt: base, ViewCount: 100},
				{VideoID: videoID, CapturedAt: base.Add(time.Minute), ViewCount: 150},
			}, nil
		},
	}
	router := newTestRouter(t, testDeps{manager: manager})

	req := httptest.NewRequest(http.MethodGet, "/api/track_video/123/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d", w.Result().StatusCode)
	}
	var resp historyResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.Count != 2 || len(resp.History) != 2 {
		t.Fatalf("履歴件数が不正: %+v", resp)
	}
	if resp.History[0].ViewCount != 100 || resp.History[1].ViewCount != 150 {
		t.Errorf("履歴の順序が保持されるべき: %+v", resp.History)
	}
}

func TestListSessions(t *testing.T) {
	manager := &mockManager{
		listSessionsFn: func() []model.SessionInfo {
			return []model.SessionInfo{
				{VideoID: "111", Status: model.SessionActive},
				{VideoID: "222", Status: model.SessionStopped},
			}
		},
	}
	router := newTestRouter(t, testDeps{manager: manager})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d", w.Result().StatusCode)
	}
	var resp sessionListResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if len(resp.Sessions) != 2 {
		t.Fatalf("セッション件数 = %d", len(resp.Sessions))
	}
	if resp.Sessions[1].Status != "stopped" {
		t.Errorf("状態が文字列で返されるべき: %+v", resp.Sessions[1])
	}
}
