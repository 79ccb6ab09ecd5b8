package provider

import (
	"context"
	"time"

	"github.com/hitoshi/viewtracker/internal/model"
)

// Service はClientとNormalizerを組み合わせ、正規化済みのレコードを返す。
// ハンドラーとトラッキングループはこの層を通じてプロバイダにアクセスする。
type Service struct {
	client     *Client
	normalizer *Normalizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client *Client, normalizer *Normalizer) *Service {
	return &Service{client: client, normalizer: normalizer}
}

// FetchSnapshot は共有URLまたは動画IDから正規化済みスナップショットを取得する。
// 正規化失敗（必須フィールド欠落）はMalformedResponseとして扱う。
func (s *Service) FetchSnapshot(ctx context.Context, videoURLOrID string) (*model.VideoSnapshot, error) {
	payload, err := s.client.FetchVideoInfo(ctx, videoURLOrID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.normalizer.NormalizeVideo(payload, time.Now())
	if err != nil {
		return nil, model.NewMalformedResponseError(err)
	}
	return snapshot, nil
}

// FetchUserProfile はsec_user_idから正規化済みユーザープロフィールを取得する。
func (s *Service) FetchUserProfile(ctx context.Context, secUserID string) (*model.UserProfile, error) {
	payload, err := s.client.FetchUserProfile(ctx, secUserID)
	if err != nil {
		return nil, err
	}
	profile, err := s.normalizer.NormalizeUser(payload)
	if err != nil {
		return nil, model.NewMalformedResponseError(err)
	}
	return profile, nil
}

// FetchUserVideos はユーザーの投稿動画一覧を正規化済みページとして取得する。
func (s *Service) FetchUserVideos(ctx context.Context, userID string, cursor int64, count int) (*model.VideoPage, error) {
	payload, err := s.client.FetchUserVideos(ctx, userID, cursor, count)
	if err != nil {
		return nil, err
	}
	page, err := s.normalizer.NormalizeVideoList(payload, time.Now())
	if err != nil {
		return nil, model.NewMalformedResponseError(err)
	}
	return page, nil
}

// HealthCheck はプロバイダの疎通と認証の有効性を確認する。
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}
