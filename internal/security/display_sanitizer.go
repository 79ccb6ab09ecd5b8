package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DisplaySanitizerService はプロバイダ由来の表示文字列のサニタイズ機能を定義する。
// 動画タイトル・投稿者名・自己紹介文などはプロバイダのレスポンスをそのまま
// ダッシュボードへ渡すため、埋め込まれたHTMLタグを除去してプレーンテキスト化する。
type DisplaySanitizerService interface {
	// SanitizeText は文字列から全てのHTMLタグを除去したプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// displaySanitizer はDisplaySanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに処理を行う。
type displaySanitizer struct {
	policy *bluemonday.Policy
}

// NewDisplaySanitizer はDisplaySanitizerServiceの新しいインスタンスを生成する。
func NewDisplaySanitizer() *displaySanitizer {
	return &displaySanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は文字列から全てのHTMLタグを除去したプレーンテキストを返す。
// bluemondayはタグ除去後にHTMLエンティティへエスケープするため、
// 表示文字列として扱えるようエンティティを復元してから前後の空白を落とす。
func (s *displaySanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
