package account

import (
	"net/http"

	"ecom-server/internal/httpjson"
)

// AdminHandler serves the admin user-management endpoints. Routes are
// mounted behind SessionMiddleware.AdminOnly.
type AdminHandler struct {
	svc     *Service
	respond *httpjson.Responder
}

func NewAdminHandler(svc *Service, respond *httpjson.Responder) *AdminHandler {
	return &AdminHandler{svc: svc, respond: respond}
}

type banRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Ban    bool   `json:"ban"`
	Reason string `json:"reason" validate:"omitempty,min=5"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.ListAccounts(r.Context())
	if err != nil {
		h.respond.Err(w, err)
		return
	}
	if accounts == nil {
		accounts = []Account{}
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   accounts,
	})
}

func (h *AdminHandler) SetBan(w http.ResponseWriter, r *http.Request) {
	identity, ok := FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	var req banRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.respond.Err(w, err)
		return
	}

	if err := h.svc.SetBan(r.Context(), identity.ID, req.UserID, req.Ban, req.Reason); err != nil {
		h.respond.Err(w, err)
		return
	}

	message := "User has been unbanned"
	if req.Ban {
		message = "User has been banned"
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
	})
}
