// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// VideoSnapshot は動画統計のある時点での計測値を表す。
// ポーリング成功1回につき1件生成され、生成後は変更しない。
type VideoSnapshot struct {
	VideoID      string
	CapturedAt   time.Time
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
	ShareCount   int64
	CollectCount int64
	Title        string
	AuthorName   string
	AuthorUID    string
	CoverURL     string
	DurationMs   int64
	CreateTime   int64
	Music        *MusicInfo
}

// MusicInfo は動画に使用されている楽曲情報を表す。
// プロバイダのレスポンスに含まれない場合はnilとして扱う。
type MusicInfo struct {
	Title   string
	Author  string
	PlayURL string
}

// UserProfile は投稿者のプロフィール情報を表す。
// トラッキングループとは独立した取得経路で生成される。
type UserProfile struct {
	SecUserID      string
	Nickname       string
	UniqueID       string
	FollowerCount  int64
	FollowingCount int64
	TotalFavorited int64
	VideoCount     int64
	Signature      string
	IPLocation     string
	AvatarURL      string
}

// VideoPage はユーザー投稿動画一覧の1ページ分を表す。
type VideoPage struct {
	Videos     []VideoSnapshot
	HasMore    bool
	NextCursor int64
}

// NormalizeVideoID はユーザー入力のURLまたはIDから安定した動画識別子を導出する。
// 同じ動画を指す2つのURL（クエリパラメータの差異など）は同じ識別子に正規化される。
//   - 数字のみの入力はそのまま動画ID（aweme_id）として扱う
//   - URLのパスに /video/{数字} が含まれる場合はその数字部分を識別子とする
//   - 短縮URL（v.douyin.com/xxxx 等）はホスト＋パスを小文字化・正規化して識別子とする
func NormalizeVideoID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("empty video URL or ID")
	}

	if isAllDigits(s) {
		return s, nil
	}

	parsed, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid video URL: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid video URL: missing host: %s", s)
	}

	// パスから /video/{数字} セグメントを探す
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "video" && i+1 < len(segments) && isAllDigits(segments[i+1]) {
			return segments[i+1], nil
		}
	}
	// 末尾が数字セグメントの場合もIDとして扱う（モバイル共有URL形式）
	if last := segments[len(segments)-1]; isAllDigits(last) && last != "" {
		return last, nil
	}

	// 短縮URL: クエリ・フラグメントを落とし、ホスト＋パスで正規化
	host := strings.ToLower(parsed.Host)
	path := strings.TrimRight(parsed.Path, "/")
	if path == "" {
		return "", fmt.Errorf("cannot derive video identifier from URL: %s", s)
	}
	return host + path, nil
}

// isAllDigits は文字列が1文字以上の数字のみで構成されるかを返す。
func isAllDigits(s string) bool {
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
