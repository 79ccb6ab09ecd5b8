// Package provider は外部統計プロバイダ（TikHub API）のクライアントを提供する。
// 認証付きリクエストの構築、レスポンスの解析、プロバイダのエラー条件から
// 内部エラー分類への変換を含む。リトライは行わない（呼び出し元の責務）。
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/viewtracker/internal/model"
)

const (
	// defaultBaseURL はTikHub APIのデフォルトエンドポイント。
	defaultBaseURL = "https://api.tikhub.io"
	// maxResponseSize はレスポンスボディの最大読み取りサイズ（5MB）。
	maxResponseSize = 5 * 1024 * 1024

	pathVideoByShareURL = "/api/v1/douyin/app/v3/fetch_one_video_by_share_url"
	pathVideoStatistics = "/api/v1/douyin/app/v3/fetch_video_statistics"
	pathUserProfile     = "/api/v1/douyin/app/v3/handler_user_profile"
	pathUserVideos      = "/api/v1/douyin/app/v3/fetch_user_post_videos"
)

// RequestRecorder はプロバイダ呼び出しの観測値を記録するインターフェース。
// メトリクス収集層が実装する。nilの場合は記録しない。
type RequestRecorder interface {
	RecordProviderStatus(statusCode int)
	RecordProviderLatency(duration time.Duration)
}

// ClientConfig はClientの設定パラメータ。
type ClientConfig struct {
	// BaseURL はプロバイダAPIのベースURL。空の場合はデフォルトを使用する。
	BaseURL string
	// APIKey はBearer認証に使用するAPIキー。
	APIKey string
	// HealthPath はヘルスチェックエンドポイントのパス。
	HealthPath string
}

// Client は外部統計プロバイダのAPIクライアント。
// 呼び出しごとに独立したリクエストを送信し、セッション状態を持たない。
// デバイス帰属パラメータ（device_id/iid）はプロセス起動時に1回生成し、
// 全呼び出しで再利用する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	recorder   RequestRecorder
	baseURL    string
	apiKey     string
	healthPath string
	deviceID   string
	iid        string
}

// NewClient はClientの新しいインスタンスを生成する。
// recorderはnil可（メトリクスを記録しない）。
func NewClient(httpClient *http.Client, logger *slog.Logger, recorder RequestRecorder, cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = "/api/v1/health/check"
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		recorder:   recorder,
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		healthPath: healthPath,
		deviceID:   newDeviceToken(),
		iid:        newDeviceToken(),
	}
}

// newDeviceToken はプロバイダのデバイス帰属用の不透明な識別子を生成する。
func newDeviceToken() string {
	return uuid.NewString()
}

// FetchVideoInfo は共有URLまたは動画IDから動画情報と統計を取得する。
// まず動画詳細を取得し、続いて統計補正APIでカウント値を上書きする（2段階取得）。
// 統計補正APIの失敗は致命的ではなく、元データの値を保持して続行する。
func (c *Client) FetchVideoInfo(ctx context.Context, videoURLOrID string) (*RawVideoPayload, error) {
	shareURL := videoURLOrID
	if isBareVideoID(videoURLOrID) {
		shareURL = "https://www.douyin.com/video/" + videoURLOrID
	}

	q := url.Values{}
	q.Set("share_url", shareURL)

	var payload RawVideoPayload
	if err := c.get(ctx, pathVideoByShareURL, q, &payload); err != nil {
		return nil, err
	}

	if payload.AwemeDetail == nil || payload.AwemeDetail.AwemeID == "" {
		return nil, model.NewMalformedResponseError(fmt.Errorf("aweme_detail missing or aweme_id empty"))
	}

	// 統計補正API: より新しいカウント値が得られた場合のみ上書きする。
	// comment_countとcollect_countは補正APIに含まれないため元の値を維持する。
	statsQ := url.Values{}
	statsQ.Set("aweme_ids", payload.AwemeDetail.AwemeID)

	var stats RawStatsPayload
	if err := c.get(ctx, pathVideoStatistics, statsQ, &stats); err != nil {
		c.logger.Warn("統計補正APIの呼び出しに失敗しました（元データの値を使用します）",
			slog.String("video_id", payload.AwemeDetail.AwemeID),
			slog.String("error", err.Error()),
		)
		return &payload, nil
	}

	if len(stats.StatisticsList) > 0 {
		overlayStatistics(&payload, stats.StatisticsList[0])
	}

	return &payload, nil
}

// overlayStatistics は統計補正APIの値を動画詳細の統計ブロックに反映する。
func overlayStatistics(payload *RawVideoPayload, entry RawStatsEntry) {
	if payload.AwemeDetail.Statistics == nil {
		payload.AwemeDetail.Statistics = &RawStatistics{}
	}
	st := payload.AwemeDetail.Statistics
	if entry.PlayCount != nil {
		st.PlayCount = entry.PlayCount
	}
	if entry.DiggCount != nil {
		st.DiggCount = entry.DiggCount
	}
	if entry.ShareCount != nil {
		st.ShareCount = entry.ShareCount
	}
}

// FetchUserProfile はsec_user_idからユーザープロフィールを取得する。
func (c *Client) FetchUserProfile(ctx context.Context, secUserID string) (*RawUserPayload, error) {
	q := url.Values{}
	q.Set("sec_user_id", secUserID)

	var payload RawUserPayload
	if err := c.get(ctx, pathUserProfile, q, &payload); err != nil {
		return nil, err
	}
	if payload.User == nil {
		return nil, model.NewMalformedResponseError(fmt.Errorf("user block missing"))
	}
	return &payload, nil
}

// FetchUserVideos はユーザーの投稿動画一覧をページ単位で取得する。
func (c *Client) FetchUserVideos(ctx context.Context, userID string, cursor int64, count int) (*RawVideoListPayload, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("max_cursor", strconv.FormatInt(cursor, 10))
	q.Set("count", strconv.Itoa(count))

	var payload RawVideoListPayload
	if err := c.get(ctx, pathUserVideos, q, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// HealthCheck はプロバイダの疎通と認証の有効性を軽量な呼び出しで確認する。
// 成功時はnil、失敗時は分類済みのProviderErrorを返す。
func (c *Client) HealthCheck(ctx context.Context) error {
	reqURL, err := c.buildURL(c.healthPath, url.Values{})
	if err != nil {
		return model.NewTransientError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return model.NewTransientError(err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.recordLatency(time.Since(start))
	if err != nil {
		return model.NewTransientError(err)
	}
	defer resp.Body.Close()
	c.recordStatus(resp.StatusCode)

	if perr := classifyStatus(resp); perr != nil {
		return perr
	}
	// ヘルスチェックはボディの内容を検証しない（200であれば疎通・認証ともに有効）
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	return nil
}

// get は認証付きGETリクエストを送信し、エンベロープのdataブロックをoutにデコードする。
// トランスポート障害・HTTPステータス・エンベロープのAPIレベルエラー・
// スキーマ検証失敗をすべてProviderErrorに変換する。
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	reqURL, err := c.buildURL(path, query)
	if err != nil {
		return model.NewTransientError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return model.NewTransientError(err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.recordLatency(time.Since(start))
	if err != nil {
		// タイムアウト・接続拒否・TLSエラー等はすべて一時的な障害として扱う
		return model.NewTransientError(err)
	}
	defer resp.Body.Close()
	c.recordStatus(resp.StatusCode)

	if perr := classifyStatus(resp); perr != nil {
		return perr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return model.NewTransientError(fmt.Errorf("failed to read response body: %w", err))
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return model.NewMalformedResponseError(err)
	}

	// プロバイダのエンベロープはHTTP 200でもAPIレベルエラーを返すことがある
	if envelope.Code != 200 {
		return model.NewInvalidInputError(resp.StatusCode,
			fmt.Sprintf("プロバイダAPIがコード %d を返しました: %s", envelope.Code, envelope.Message))
	}
	if len(envelope.Data) == 0 {
		return model.NewMalformedResponseError(fmt.Errorf("data block missing in envelope"))
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return model.NewMalformedResponseError(err)
	}

	return nil
}

// classifyStatus はHTTPステータスコードをProviderErrorに分類する。
// 200はnilを返す。
func classifyStatus(resp *http.Response) *model.ProviderError {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return model.NewUnauthorizedError(resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return model.NewRateLimitedError(parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode == http.StatusNotFound:
		return model.NewNotFoundError("プロバイダに対象が見つかりません")
	case resp.StatusCode >= 500:
		return model.NewTransientStatusError(resp.StatusCode)
	case resp.StatusCode >= 400:
		return model.NewInvalidInputError(resp.StatusCode,
			fmt.Sprintf("プロバイダがステータス %d を返しました", resp.StatusCode))
	default:
		return model.NewTransientStatusError(resp.StatusCode)
	}
}

// parseRetryAfter はRetry-Afterヘッダーを解釈する。
// 秒数形式とHTTP日付形式の両方に対応する。解釈できない場合は0を返す。
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// buildURL はベースURL・パス・クエリおよびデバイス帰属パラメータからリクエストURLを構築する。
func (c *Client) buildURL(path string, query url.Values) (string, error) {
	parsed, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("invalid provider URL: %w", err)
	}
	query.Set("device_id", c.deviceID)
	query.Set("iid", c.iid)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// setHeaders は認証およびコンテンツネゴシエーションのヘッダーを設定する。
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "ViewTracker/1.0")
}

// recordStatus はメトリクスレコーダーにHTTPステータスを記録する。
func (c *Client) recordStatus(statusCode int) {
	if c.recorder != nil {
		c.recorder.RecordProviderStatus(statusCode)
	}
}

// recordLatency はメトリクスレコーダーに呼び出しレイテンシを記録する。
func (c *Client) recordLatency(d time.Duration) {
	if c.recorder != nil {
		c.recorder.RecordProviderLatency(d)
	}
}

// isBareVideoID は入力がURLではなく素の動画ID（数字のみ）かを判定する。
func isBareVideoID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
