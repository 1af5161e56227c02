package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/diewo77/bilan-portal/internal/httpx"
	"github.com/diewo77/bilan-portal/internal/services"
)

type HealthResponse struct {
	DatabaseStatus  string `json:"database_status"`
	ClientsCount    int64  `json:"clients_count"`
	RecipientsCount int64  `json:"recipients_count"`
}

type HealthHandler struct {
	clients *services.ClientService
	log     *zap.Logger
}

func NewHealthHandler(clients *services.ClientService, log *zap.Logger) *HealthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthHandler{clients: clients, log: log}
}

// Check reports database reachability with the client and recipient counts.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clients, err := h.clients.Count(ctx)
	if err == nil {
		var recipients int64
		recipients, err = h.clients.Directory.Count(ctx)
		if err == nil {
			httpx.JSON(w, http.StatusOK, HealthResponse{DatabaseStatus: "connected", ClientsCount: clients, RecipientsCount: recipients})
			return
		}
	}
	h.log.Warn("health check failed", zap.Error(err))
	httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"database_status": "disconnected"})
}
