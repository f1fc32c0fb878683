// Package raiseapi exposes the raise ledger operations over HTTP.
package raiseapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"raisecore/internal/core"
	"raisecore/pkg/domain"
)

// CallerHeader names the request header carrying the acting identity. The
// adapter performs no authentication; deployments terminate identity upstream
// and forward it here.
const CallerHeader = "X-Raise-Caller"

// Handler provides HTTP access to the raise ledger service.
type Handler struct {
	Service *core.Service
}

// NewHandler constructs a raise ledger HTTP handler.
func NewHandler(service *core.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "", "raise service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodGet && path == "/api/v1/raise":
		writeJSON(w, http.StatusOK, map[string]any{"raise": h.Service.Raise()})
	case r.Method == http.MethodGet && path == "/api/v1/raise/custody":
		writeJSON(w, http.StatusOK, map[string]any{"balance": h.Service.CustodyBalance()})
	case r.Method == http.MethodGet && path == "/api/v1/raise/investors":
		writeJSON(w, http.StatusOK, map[string]any{"investors": h.Service.Investors()})
	case strings.HasPrefix(path, "/api/v1/raise/investors/"):
		h.handleInvestor(w, r, strings.TrimPrefix(path, "/api/v1/raise/investors/"))
	case r.Method == http.MethodPost && path == "/api/v1/raise/deposits":
		h.handleDeposit(w, r)
	case r.Method == http.MethodPost && path == "/api/v1/raise/close":
		h.handleClose(w, r)
	case r.Method == http.MethodPost && path == "/api/v1/raise/pull":
		h.handlePull(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleInvestor(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	address := segments[0]
	if address == "" {
		http.NotFound(w, r)
		return
	}

	if len(segments) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
			return
		}
		investor, ok := h.Service.Investor(address)
		if !ok {
			writeError(w, http.StatusNotFound, "", "investor not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"investor": investor})
		return
	}

	if len(segments) != 2 || segments[1] != "cap" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}

	var req capRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid cap request payload")
		return
	}
	investor, _, err := h.Service.SetInvestorCap(r.Context(), caller(r), address, req.Cap)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"investor": investor})
}

type capRequest struct {
	Cap domain.Amount `json:"cap"`
}

type depositRequest struct {
	Amount domain.Amount `json:"amount"`
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid deposit request payload")
		return
	}
	outcome, _, err := h.Service.Deposit(r.Context(), caller(r), req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deposit": outcome})
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	raise, _, err := h.Service.CloseRaise(r.Context(), caller(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"raise": raise})
}

type pullRequest struct {
	Recipient string `json:"recipient"`
}

func (h *Handler) handlePull(w http.ResponseWriter, r *http.Request) {
	var req pullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid pull request payload")
		return
	}
	if strings.TrimSpace(req.Recipient) == "" {
		writeError(w, http.StatusBadRequest, "", "recipient required")
		return
	}
	swept, err := h.Service.PullFunds(r.Context(), caller(r), req.Recipient)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"swept": swept})
}

func caller(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(CallerHeader))
}

// writeServiceError maps service failures onto HTTP statuses: authorization
// failures to 403, input problems to 400, precondition and rule violations to
// 409, external ledger failures to 502.
func writeServiceError(w http.ResponseWriter, err error) {
	var transferErr domain.TransferError
	if errors.As(err, &transferErr) {
		writeError(w, http.StatusBadGateway, "", transferErr.Error())
		return
	}
	var ruleErr domain.RuleViolationError
	if errors.As(err, &ruleErr) {
		writeError(w, http.StatusConflict, "", ruleErr.Error())
		return
	}
	code := domain.CodeOf(err)
	switch code {
	case domain.CodeUnauthorized:
		writeError(w, http.StatusForbidden, code, err.Error())
	case domain.CodeInvalidAmount:
		writeError(w, http.StatusBadRequest, code, err.Error())
	case "":
		writeError(w, http.StatusInternalServerError, "", err.Error())
	default:
		writeError(w, http.StatusConflict, code, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code domain.FailureCode, message string) {
	payload := map[string]any{"error": message}
	if code != "" {
		payload["code"] = code
	}
	writeJSON(w, status, payload)
}
