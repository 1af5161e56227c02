package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/diewo77/bilan-portal/internal/httpx"
	"github.com/diewo77/bilan-portal/internal/services"
)

type ImportHandler struct {
	svc *services.ImportService
	log *zap.Logger
}

func NewImportHandler(svc *services.ImportService, log *zap.Logger) *ImportHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImportHandler{svc: svc, log: log}
}

// Submit validates an import configuration and hands it to the analysis queue.
func (h *ImportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var cfg services.ImportConfig
	if err := httpx.DecodeJSON(r, &cfg); err != nil {
		writeDecodeError(w, err)
		return
	}
	sub, err := h.svc.Process(r.Context(), cfg)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sub)
}
