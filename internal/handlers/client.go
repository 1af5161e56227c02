package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/diewo77/bilan-portal/internal/httpx"
	"github.com/diewo77/bilan-portal/internal/models"
	"github.com/diewo77/bilan-portal/internal/services"
	"github.com/diewo77/bilan-portal/internal/validation"
)

// ClientRequest is the body accepted by POST /clients and PUT /clients/{id}.
type ClientRequest struct {
	CompanyName      string   `json:"companyName"`
	SIRET            string   `json:"siret"`
	Accountant       string   `json:"accountant"`
	Status           string   `json:"status"`
	AuthorizedEmails []string `json:"authorizedEmails"`
}

func (r ClientRequest) input() services.ClientInput {
	return services.ClientInput{
		CompanyName:      r.CompanyName,
		SIRET:            r.SIRET,
		Accountant:       r.Accountant,
		Status:           r.Status,
		AuthorizedEmails: r.AuthorizedEmails,
	}
}

// ClientResponse is the JSON view of a client.
type ClientResponse struct {
	ID               string    `json:"id"`
	CompanyName      string    `json:"companyName"`
	SIRET            string    `json:"siret"`
	SIRETFormatted   string    `json:"siretFormatted"`
	Accountant       string    `json:"accountant"`
	Status           string    `json:"status"`
	AuthorizedEmails []string  `json:"authorizedEmails"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func NewClientResponse(c *models.Client) ClientResponse {
	return ClientResponse{
		ID:               c.ID,
		CompanyName:      c.CompanyName,
		SIRET:            c.SIRET,
		SIRETFormatted:   validation.FormatSIRET(c.SIRET),
		Accountant:       c.Accountant,
		Status:           string(c.Status),
		AuthorizedEmails: c.Emails(),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

type ClientHandler struct {
	svc *services.ClientService
	log *zap.Logger
}

func NewClientHandler(svc *services.ClientService, log *zap.Logger) *ClientHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClientHandler{svc: svc, log: log}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	out := make([]ClientResponse, 0, len(clients))
	for i := range clients {
		out = append(out, NewClientResponse(&clients[i]))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *ClientHandler) View(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewClientResponse(c))
}

// Create is not idempotent: retrying a request creates another client.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	c, err := h.svc.Create(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewClientResponse(c))
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	c, err := h.svc.Update(r.Context(), r.PathValue("id"), req.input())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewClientResponse(c))
}

func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
