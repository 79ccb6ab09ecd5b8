package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/viewtracker/internal/health"
)

// HealthMonitorInterface はヘルスハンドラーが必要とする監視インターフェース。
type HealthMonitorInterface interface {
	// Current は最後に観測したプロバイダのヘルス状態を返す。
	Current() health.Status
}

// HealthHandler はプロバイダのヘルス状態を公開するHTTPハンドラー。
type HealthHandler struct {
	monitor HealthMonitorInterface
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(monitor HealthMonitorInterface) *HealthHandler {
	return &HealthHandler{monitor: monitor}
}

// healthResponse はヘルス状態のAPIレスポンス。
type healthResponse struct {
	Status        string     `json:"status"`
	Reachable     bool       `json:"reachable"`
	AuthValid     bool       `json:"auth_valid"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

// GetHealth はプロバイダのヘルス状態を返す。
// GET /api/health
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := h.monitor.Current()

	overall := "ok"
	if !status.Reachable || !status.AuthValid {
		overall = "degraded"
	}

	resp := healthResponse{
		Status:    overall,
		Reachable: status.Reachable,
		AuthValid: status.AuthValid,
	}
	if !status.LastCheckedAt.IsZero() {
		resp.LastCheckedAt = &status.LastCheckedAt
	}
	writeJSON(w, http.StatusOK, resp)
}
