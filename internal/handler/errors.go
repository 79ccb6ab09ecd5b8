package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/hitoshi/viewtracker/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIErrorとProviderErrorをそれぞれのステータスコードにマッピングし、
// それ以外は内部サーバーエラーとして扱う。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	if perr, ok := model.AsProviderError(err); ok {
		statusCode, converted := providerErrorToAPI(perr)
		if perr.Kind == model.KindRateLimited && perr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(perr.RetryAfter.Seconds()))))
		}
		writeAPIErrorResponse(w, statusCode, converted)
		return
	}

	// 分類不能なエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case model.ErrCodeNoDataYet:
		// セッションは存在するがデータ未取得: 受理済みとして応答する
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// providerErrorToAPI はプロバイダのエラー分類を統一エラーフォーマットと
// HTTPステータスコードに変換する。
func providerErrorToAPI(perr *model.ProviderError) (int, *model.APIError) {
	switch perr.Kind {
	case model.KindUnauthorized:
		return http.StatusBadGateway, &model.APIError{
			Code:     model.ErrCodeUnauthorized,
			Message:  "統計プロバイダの認証に失敗しました。",
			Category: "auth",
			Action:   "サーバーのAPIキー設定を確認してください。",
		}
	case model.KindRateLimited:
		return http.StatusTooManyRequests, &model.APIError{
			Code:     model.ErrCodeRateLimited,
			Message:  "統計プロバイダのレート制限を超過しました。",
			Category: "provider",
			Action:   "しばらく待ってから再度お試しください。",
		}
	case model.KindNotFound:
		return http.StatusNotFound, &model.APIError{
			Code:     model.ErrCodeVideoNotFound,
			Message:  "指定された動画が見つかりません。削除または非公開になっている可能性があります。",
			Category: "provider",
			Action:   "動画URLが正しいか確認してください。",
		}
	case model.KindInvalidInput:
		return http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidURL,
			Message:  "プロバイダがリクエストを受理しませんでした: " + perr.Message,
			Category: "validation",
			Action:   "動画URLまたはIDの形式を確認してください。",
		}
	case model.KindMalformedResponse:
		return http.StatusBadGateway, &model.APIError{
			Code:     model.ErrCodeMalformedResponse,
			Message:  "統計プロバイダのレスポンスを解析できませんでした。",
			Category: "provider",
			Action:   "しばらく待ってから再度お試しください。",
		}
	default:
		return http.StatusBadGateway, &model.APIError{
			Code:     model.ErrCodeProviderUnavailable,
			Message:  "統計プロバイダに一時的に接続できません。",
			Category: "provider",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}
}
