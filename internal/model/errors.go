package model

import (
	"errors"
	"fmt"
	"time"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, provider, tracking, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL          = "INVALID_URL"
	ErrCodeSSRFBlocked         = "SSRF_BLOCKED"
	ErrCodeUnauthorized        = "PROVIDER_UNAUTHORIZED"
	ErrCodeRateLimited         = "PROVIDER_RATE_LIMITED"
	ErrCodeVideoNotFound       = "VIDEO_NOT_FOUND"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeMalformedResponse   = "MALFORMED_RESPONSE"
	ErrCodeSessionNotFound     = "SESSION_NOT_FOUND"
	ErrCodeNoDataYet           = "NO_DATA_YET"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効な動画URLです: %s", reason),
		Category: "validation",
		Action:   "Douyinの共有URL（https://で始まるURL）または動画IDを入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLの処理がブロックされました。",
		Category: "validation",
		Action:   "公開されている動画の共有URLを入力してください。",
	}
}

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError(videoID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定された動画はトラッキングされていません: %s", videoID),
		Category: "tracking",
		Action:   "動画IDを確認するか、先にトラッキングを開始してください。",
	}
}

// NewNoDataYetError は初回ポーリング未完了エラーを生成する。
func NewNoDataYetError(videoID string) *APIError {
	return &APIError{
		Code:     ErrCodeNoDataYet,
		Message:  fmt.Sprintf("まだ計測データがありません: %s", videoID),
		Category: "tracking",
		Action:   "初回の計測が完了するまで数秒待ってから再度お試しください。",
	}
}

// ErrorKind は外部統計プロバイダのエラー分類を表す。
type ErrorKind string

const (
	// KindUnauthorized は認証失敗（401/403）。
	KindUnauthorized ErrorKind = "unauthorized"
	// KindRateLimited はレート制限（429）。RetryAfterヒントを持ちうる。
	KindRateLimited ErrorKind = "rate_limited"
	// KindInvalidInput は入力不正（その他4xxおよびプロバイダのAPIレベルエラー）。
	KindInvalidInput ErrorKind = "invalid_input"
	// KindNotFound は対象が存在しない（404）。
	KindNotFound ErrorKind = "not_found"
	// KindTransient は一時的な障害（タイムアウト、接続失敗、5xx）。
	KindTransient ErrorKind = "transient"
	// KindMalformedResponse は200応答だがスキーマ検証に失敗したレスポンス。
	KindMalformedResponse ErrorKind = "malformed_response"
)

// ProviderError は外部統計プロバイダの異種エラーを内部分類に正規化したもの。
// セッションがリトライ・中断・ユーザー通知を判断するための情報を持つ。
type ProviderError struct {
	Kind       ErrorKind
	StatusCode int           // HTTPステータスコード（該当する場合）
	RetryAfter time.Duration // RateLimited時のRetry-Afterヒント（0は未指定）
	Message    string
	Cause      error
}

// Error はerrorインターフェースを実装する。
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Message)
}

// Unwrap はラップされた原因エラーを返す。
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewUnauthorizedError は認証失敗エラーを生成する。
func NewUnauthorizedError(statusCode int) *ProviderError {
	return &ProviderError{
		Kind:       KindUnauthorized,
		StatusCode: statusCode,
		Message:    "プロバイダの認証に失敗しました。APIキーを確認してください",
	}
}

// NewRateLimitedError はレート制限エラーを生成する。
func NewRateLimitedError(retryAfter time.Duration) *ProviderError {
	return &ProviderError{
		Kind:       KindRateLimited,
		StatusCode: 429,
		RetryAfter: retryAfter,
		Message:    "プロバイダのレート制限を超過しました",
	}
}

// NewInvalidInputError は入力不正エラーを生成する。
func NewInvalidInputError(statusCode int, message string) *ProviderError {
	return &ProviderError{
		Kind:       KindInvalidInput,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewNotFoundError は対象未検出エラーを生成する。
func NewNotFoundError(message string) *ProviderError {
	return &ProviderError{
		Kind:       KindNotFound,
		StatusCode: 404,
		Message:    message,
	}
}

// NewTransientError は一時的な障害エラーを生成する。
func NewTransientError(cause error) *ProviderError {
	return &ProviderError{
		Kind:    KindTransient,
		Message: "プロバイダへのリクエストが一時的に失敗しました",
		Cause:   cause,
	}
}

// NewTransientStatusError は5xxステータスによる一時的な障害エラーを生成する。
func NewTransientStatusError(statusCode int) *ProviderError {
	return &ProviderError{
		Kind:       KindTransient,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("プロバイダがステータス %d を返しました", statusCode),
	}
}

// NewMalformedResponseError はスキーマ検証失敗エラーを生成する。
func NewMalformedResponseError(cause error) *ProviderError {
	return &ProviderError{
		Kind:    KindMalformedResponse,
		Message: "プロバイダのレスポンスの解析に失敗しました",
		Cause:   cause,
	}
}

// AsProviderError はエラーチェーンからProviderErrorを取り出す。
func AsProviderError(err error) (*ProviderError, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// NormalizationError はプロバイダペイロードの正規化失敗を表す。
// 必須フィールドの欠落または型不一致の場合のみ発生する。
type NormalizationError struct {
	Field  string
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization failed: field %q: %s", e.Field, e.Reason)
}
