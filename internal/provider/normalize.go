package provider

import (
	"time"

	"github.com/hitoshi/viewtracker/internal/model"
)

// TextSanitizer はプロバイダ由来の表示文字列をサニタイズするインターフェース。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// Normalizer はプロバイダの生ペイロードを内部レコードに変換する。
// 任意フィールドの欠落は定義済みの空値で補い、必須フィールド
// （動画識別子・再生数）の欠落のみをNormalizationErrorとする。
// 変換は純粋で、同一入力に対して常に同一出力を返す。
type Normalizer struct {
	sanitizer TextSanitizer
}

// NewNormalizer はNormalizerの新しいインスタンスを生成する。
func NewNormalizer(sanitizer TextSanitizer) *Normalizer {
	return &Normalizer{sanitizer: sanitizer}
}

// NormalizeVideo は単一動画ペイロードをVideoSnapshotに正規化する。
// capturedAtはスナップショットの計測時刻として記録される。
func (n *Normalizer) NormalizeVideo(raw *RawVideoPayload, capturedAt time.Time) (*model.VideoSnapshot, error) {
	if raw == nil || raw.AwemeDetail == nil {
		return nil, &model.NormalizationError{Field: "aweme_detail", Reason: "missing"}
	}
	return n.normalizeDetail(raw.AwemeDetail, capturedAt)
}

// normalizeDetail は動画詳細ブロック1件をVideoSnapshotに変換する。
func (n *Normalizer) normalizeDetail(detail *RawVideoDetail, capturedAt time.Time) (*model.VideoSnapshot, error) {
	if detail.AwemeID == "" {
		return nil, &model.NormalizationError{Field: "aweme_id", Reason: "missing"}
	}
	if detail.Statistics == nil {
		return nil, &model.NormalizationError{Field: "statistics", Reason: "missing"}
	}
	if detail.Statistics.PlayCount == nil {
		return nil, &model.NormalizationError{Field: "statistics.play_count", Reason: "missing"}
	}

	snapshot := &model.VideoSnapshot{
		VideoID:      detail.AwemeID,
		CapturedAt:   capturedAt,
		ViewCount:    int64Value(detail.Statistics.PlayCount),
		LikeCount:    int64Value(detail.Statistics.DiggCount),
		CommentCount: int64Value(detail.Statistics.CommentCount),
		ShareCount:   int64Value(detail.Statistics.ShareCount),
		CollectCount: int64Value(detail.Statistics.CollectCount),
		Title:        n.sanitize(detail.Desc),
		DurationMs:   detail.Duration,
		CreateTime:   detail.CreateTime,
	}

	if detail.Author != nil {
		snapshot.AuthorName = n.sanitize(detail.Author.Nickname)
		snapshot.AuthorUID = detail.Author.UniqueID
	}
	if detail.Video != nil {
		snapshot.CoverURL = detail.Video.Cover.First()
	}
	// 楽曲情報は任意フィールド: 欠落時はnilのまま
	if detail.Music != nil && (detail.Music.Title != "" || detail.Music.Author != "") {
		snapshot.Music = &model.MusicInfo{
			Title:   n.sanitize(detail.Music.Title),
			Author:  n.sanitize(detail.Music.Author),
			PlayURL: detail.Music.PlayURL.First(),
		}
	}

	return snapshot, nil
}

// NormalizeUser はユーザープロフィールペイロードをUserProfileに正規化する。
func (n *Normalizer) NormalizeUser(raw *RawUserPayload) (*model.UserProfile, error) {
	if raw == nil || raw.User == nil {
		return nil, &model.NormalizationError{Field: "user", Reason: "missing"}
	}
	if raw.User.SecUID == "" {
		return nil, &model.NormalizationError{Field: "user.sec_uid", Reason: "missing"}
	}

	u := raw.User
	return &model.UserProfile{
		SecUserID:      u.SecUID,
		Nickname:       n.sanitize(u.Nickname),
		UniqueID:       u.UniqueID,
		FollowerCount:  int64Value(u.FollowerCount),
		FollowingCount: int64Value(u.FollowingCount),
		TotalFavorited: int64Value(u.TotalFavorited),
		VideoCount:     int64Value(u.AwemeCount),
		Signature:      n.sanitize(u.Signature),
		IPLocation:     u.IPLocation,
		AvatarURL:      u.AvatarLarger.First(),
	}, nil
}

// NormalizeVideoList は投稿動画一覧ペイロードをVideoPageに正規化する。
// 必須フィールドを欠く個別エントリはページから除外する（一覧全体は失敗させない）。
func (n *Normalizer) NormalizeVideoList(raw *RawVideoListPayload, capturedAt time.Time) (*model.VideoPage, error) {
	if raw == nil {
		return nil, &model.NormalizationError{Field: "data", Reason: "missing"}
	}

	page := &model.VideoPage{
		Videos:     make([]model.VideoSnapshot, 0, len(raw.AwemeList)),
		HasMore:    bool(raw.HasMore),
		NextCursor: raw.MaxCursor,
	}

	for i := range raw.AwemeList {
		snapshot, err := n.normalizeDetail(&raw.AwemeList[i], capturedAt)
		if err != nil {
			continue
		}
		page.Videos = append(page.Videos, *snapshot)
	}

	return page, nil
}

// sanitize はサニタイザ未設定の場合に入力をそのまま返すヘルパー。
func (n *Normalizer) sanitize(s string) string {
	if n.sanitizer == nil {
		return s
	}
	return n.sanitizer.SanitizeText(s)
}
