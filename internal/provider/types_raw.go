package provider

import (
	"fmt"
	"strconv"
	"strings"
)

// プロバイダのレスポンスは緩い型付けのJSONであり、数値フィールドが
// 文字列として返ることがある。FlexInt64は数値と数値文字列の両方を受理し、
// それ以外の値は明示的にエラーとする。

// FlexInt64 は数値または数値文字列として表現されるカウント値。
type FlexInt64 int64

// UnmarshalJSON はJSON数値と数値文字列の両方を受理する。
func (f *FlexInt64) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	s = strings.Trim(s, `"`)
	if s == "" || s == "null" {
		return fmt.Errorf("empty numeric value")
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric value: %q", s)
	}
	*f = FlexInt64(i)
	return nil
}

// int64Value はnil許容のFlexInt64からint64値を取り出す。nilは0として扱う。
func int64Value(p *FlexInt64) int64 {
	if p == nil {
		return 0
	}
	return int64(*p)
}

// FlexBool は真偽値または0/1数値として表現されるフラグ値。
type FlexBool bool

// UnmarshalJSON はJSON真偽値と0/1数値の両方を受理する。
func (f *FlexBool) UnmarshalJSON(b []byte) error {
	switch strings.TrimSpace(string(b)) {
	case "true", "1":
		*f = true
	case "false", "0", "null":
		*f = false
	default:
		return fmt.Errorf("invalid boolean value: %q", string(b))
	}
	return nil
}

// RawURLList はプロバイダ共通のURLコンテナ形式 {url_list: [...]} を表す。
type RawURLList struct {
	URLList []string `json:"url_list"`
}

// First はurl_listの先頭URLを返す。空の場合は空文字列を返す。
func (r *RawURLList) First() string {
	if r == nil || len(r.URLList) == 0 {
		return ""
	}
	return r.URLList[0]
}

// RawStatistics は動画統計ブロックの生形式。
type RawStatistics struct {
	PlayCount    *FlexInt64 `json:"play_count"`
	DiggCount    *FlexInt64 `json:"digg_count"`
	CommentCount *FlexInt64 `json:"comment_count"`
	ShareCount   *FlexInt64 `json:"share_count"`
	CollectCount *FlexInt64 `json:"collect_count"`
}

// RawAuthor は投稿者ブロックの生形式。
type RawAuthor struct {
	Nickname      string     `json:"nickname"`
	UniqueID      string     `json:"unique_id"`
	SecUID        string     `json:"sec_uid"`
	FollowerCount *FlexInt64 `json:"follower_count"`
}

// RawMusic は楽曲ブロックの生形式。
type RawMusic struct {
	Title   string      `json:"title"`
	Author  string      `json:"author"`
	PlayURL *RawURLList `json:"play_url"`
}

// RawVideoMedia は動画メディアブロックの生形式。
type RawVideoMedia struct {
	Cover    *RawURLList `json:"cover"`
	PlayAddr *RawURLList `json:"play_addr"`
}

// RawVideoDetail は動画1件の生形式。
// fetch_one_video_by_share_urlのaweme_detailおよび
// fetch_user_post_videosのaweme_list要素の両方がこの形式をとる。
type RawVideoDetail struct {
	AwemeID    string         `json:"aweme_id"`
	Desc       string         `json:"desc"`
	CreateTime int64          `json:"create_time"`
	Duration   int64          `json:"duration"`
	Author     *RawAuthor     `json:"author"`
	Statistics *RawStatistics `json:"statistics"`
	Video      *RawVideoMedia `json:"video"`
	Music      *RawMusic      `json:"music"`
}

// RawVideoPayload は単一動画取得のデータブロック。
type RawVideoPayload struct {
	AwemeDetail *RawVideoDetail `json:"aweme_detail"`
}

// RawStatsEntry は統計補正APIのリスト要素。
// comment_countは含まれないため、元データの値を保持する。
type RawStatsEntry struct {
	AwemeID    string     `json:"aweme_id"`
	PlayCount  *FlexInt64 `json:"play_count"`
	DiggCount  *FlexInt64 `json:"digg_count"`
	ShareCount *FlexInt64 `json:"share_count"`
}

// RawStatsPayload は統計補正APIのデータブロック。
type RawStatsPayload struct {
	StatisticsList []RawStatsEntry `json:"statistics_list"`
}

// RawUser はユーザープロフィールブロックの生形式。
type RawUser struct {
	Nickname       string      `json:"nickname"`
	UniqueID       string      `json:"unique_id"`
	SecUID         string      `json:"sec_uid"`
	FollowerCount  *FlexInt64  `json:"follower_count"`
	FollowingCount *FlexInt64  `json:"following_count"`
	TotalFavorited *FlexInt64  `json:"total_favorited"`
	AwemeCount     *FlexInt64  `json:"aweme_count"`
	Signature      string      `json:"signature"`
	IPLocation     string      `json:"ip_location"`
	AvatarLarger   *RawURLList `json:"avatar_larger"`
}

// RawUserPayload はユーザープロフィール取得のデータブロック。
type RawUserPayload struct {
	User *RawUser `json:"user"`
}

// RawVideoListPayload はユーザー投稿動画一覧のデータブロック。
type RawVideoListPayload struct {
	AwemeList []RawVideoDetail `json:"aweme_list"`
	HasMore   FlexBool         `json:"has_more"`
	MaxCursor int64            `json:"max_cursor"`
}
