package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultOperationsLimit = 50
	maxOperationsLimit     = 500
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			zap.L().Error("Failed to encode response", zap.Error(err))
		}
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, store.ErrInvalidAmount),
		errors.Is(err, store.ErrInsufficientFunds),
		errors.Is(err, store.ErrEmptyReason):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrPurchaseNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrPurchaseMismatch),
		errors.Is(err, store.ErrPurchaseNotOpen),
		errors.Is(err, store.ErrPurchaseAlreadyFrozen),
		errors.Is(err, store.ErrConcurrentModification),
		errors.Is(err, store.ErrDuplicateAccount):
		status = http.StatusConflict
	case errors.Is(err, store.ErrIntegrityFault):
		zap.L().Error("Integrity fault surfaced to API", zap.Error(err))
		status = http.StatusInternalServerError
	default:
		zap.L().Error("Unhandled API error", zap.Error(err))
	}

	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func operationResponse(result *store.OperationResult) models.OperationResponse {
	return models.OperationResponse{
		Success:            true,
		AlreadyProcessed:   result.AlreadyProcessed,
		OperationType:      result.OperationType,
		Amount:             result.Amount,
		BalanceAfter:       result.BalanceAfter,
		FrozenBalanceAfter: result.FrozenBalanceAfter,
	}
}

func accountResponse(account *models.Account) models.AccountResponse {
	return models.AccountResponse{
		ID:            account.ID,
		Name:          account.Name,
		Email:         account.Email,
		Balance:       account.Balance,
		FrozenBalance: account.FrozenBalance,
		Available:     account.Available(),
		CreatedAt:     account.CreatedAt,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Email == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "name and email are required"})
		return
	}

	account, err := s.store.CreateAccount(r.Context(), uuid.New().String(), req.Name, req.Email)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, accountResponse(account))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.store.GetAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, accountResponse(account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	responses := make([]models.AccountResponse, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, accountResponse(&accounts[i]))
	}
	respondJSON(w, http.StatusOK, responses)
}

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]

	// The account must exist before an empty log means "no operations".
	if _, err := s.store.GetAccount(r.Context(), accountID); err != nil {
		respondError(w, err)
		return
	}

	limit := queryInt(r, "limit", defaultOperationsLimit)
	if limit <= 0 || limit > maxOperationsLimit {
		limit = defaultOperationsLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	operations, err := s.store.ListOperations(r.Context(), accountID, limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}

	records := make([]models.OperationRecord, 0, len(operations))
	for _, op := range operations {
		records = append(records, models.OperationRecord{
			ID:            op.ID,
			PurchaseID:    op.PurchaseID,
			Type:          op.Type,
			Amount:        op.Amount,
			BalanceBefore: op.BalanceBefore,
			BalanceAfter:  op.BalanceAfter,
			FrozenBefore:  op.FrozenBefore,
			FrozenAfter:   op.FrozenAfter,
			Reason:        op.Reason,
			CreatedAt:     op.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleFreeze(w http.ResponseWriter, r *http.Request) {
	var req models.FreezeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(15 * time.Minute)
	}

	result, err := s.store.Freeze(r.Context(), store.FreezeParams{
		AccountID: req.AccountID,
		Ref:       req.Purchase,
		Amount:    req.Amount,
		ExpiresAt: expiresAt,
		Service:   req.Service,
		Country:   req.Country,
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyProcessed {
		status = http.StatusOK
	}
	respondJSON(w, status, operationResponse(result))
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req models.ResolveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.store.Commit(r.Context(), store.ResolveParams{
		AccountID: req.AccountID,
		Ref:       req.Purchase,
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, operationResponse(result))
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req models.ResolveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.store.Refund(r.Context(), store.ResolveParams{
		AccountID: req.AccountID,
		Ref:       req.Purchase,
		Outcome:   models.PurchaseStatus(req.Outcome),
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, operationResponse(result))
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req models.CreditRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.store.CreditAdmin(r.Context(), store.CreditParams{
		AccountID: mux.Vars(r)["id"],
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, operationResponse(result))
}

func (s *Server) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ref := models.PurchaseRef{Kind: models.PurchaseKind(vars["kind"]), ID: vars["id"]}
	if err := ref.Validate(); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	purchase, err := s.store.GetPurchase(r.Context(), ref)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":            purchase.ID,
		"kind":          purchase.Kind,
		"account_id":    purchase.AccountID,
		"price":         purchase.Price,
		"frozen_amount": purchase.FrozenAmount,
		"status":        purchase.Status,
		"service":       purchase.Service,
		"country":       purchase.Country,
		"expires_at":    purchase.ExpiresAt,
		"created_at":    purchase.CreatedAt,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
