// Package httpapi exposes the ledger application over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/reelpay/ledger/internal/app"
	"github.com/reelpay/ledger/internal/app/domain/balance"
	"github.com/reelpay/ledger/internal/app/metrics"
	"github.com/reelpay/ledger/internal/app/services/accounts"
	catalogsvc "github.com/reelpay/ledger/internal/app/services/catalog"
	ledgersvc "github.com/reelpay/ledger/internal/app/services/ledger"
	"github.com/reelpay/ledger/internal/middleware"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
}

// Option adjusts handler construction.
type Option func(*handler)

// WithAuditFile persists the audit trail of mutating API calls as JSONL
// at path, in addition to the in-memory ring.
func WithAuditFile(path string, max int) Option {
	return func(h *handler) {
		sink, err := newFileAuditSink(path)
		if err != nil {
			return
		}
		h.audit = newAuditLog(max, sink)
	}
}

// NewHandler returns a router exposing the core REST API.
func NewHandler(application *app.Application, opts ...Option) http.Handler {
	h := &handler{app: application, audit: newAuditLog(0, nil)}
	for _, opt := range opts {
		opt(h)
	}

	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware())
	r.Use(h.auditMiddleware)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/platforms", h.createPlatform).Methods(http.MethodPost)
	r.HandleFunc("/platforms", h.listPlatforms).Methods(http.MethodGet)
	r.HandleFunc("/platforms/{id}", h.getPlatform).Methods(http.MethodGet)
	r.HandleFunc("/platforms/{id}/accounts", h.registerAccount).Methods(http.MethodPost)
	r.HandleFunc("/platforms/{id}/accounts", h.listAccounts).Methods(http.MethodGet)
	r.HandleFunc("/platforms/{id}/items", h.registerItem).Methods(http.MethodPost)
	r.HandleFunc("/platforms/{id}/items", h.listItems).Methods(http.MethodGet)
	r.HandleFunc("/platforms/{id}/withdrawals", h.withdraw).Methods(http.MethodPost)
	r.HandleFunc("/platforms/{id}/transactions", h.platformTransactions).Methods(http.MethodGet)

	r.HandleFunc("/accounts/{id}", h.getAccount).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/deposits", h.deposit).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{id}/purchases", h.purchase).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{id}/transactions", h.accountTransactions).Methods(http.MethodGet)

	r.HandleFunc("/items/{id}", h.getItem).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id}", h.getTransaction).Methods(http.MethodGet)
	r.HandleFunc("/audit", h.listAudit).Methods(http.MethodGet)

	return r
}

// auditMiddleware records every mutating API call with its outcome.
func (h *handler) auditMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusCapture{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.audit.add(auditEntry{
			Time:       time.Now().UTC(),
			Caller:     middleware.CallerAddress(r.Context()),
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	})
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

type statusCapture struct {
	http.ResponseWriter
	status int
}

func (s *statusCapture) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) createPlatform(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  string `json:"name"`
		Owner string `json:"owner"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	owner := middleware.CallerAddress(r.Context())
	if owner == "" {
		owner = payload.Owner
	}

	p, err := h.app.Ledger.CreatePlatform(r.Context(), payload.Name, owner)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) listPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.app.Ledger.ListPlatforms(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, platforms)
}

func (h *handler) getPlatform(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Ledger.GetPlatform(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) registerAccount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Address string `json:"address"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	address := payload.Address
	if address == "" {
		address = middleware.CallerAddress(r.Context())
	}

	acct, err := h.app.Accounts.Register(r.Context(), mux.Vars(r)["id"], address)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (h *handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accts, err := h.app.Accounts.List(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, accts)
}

func (h *handler) getAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.app.Accounts.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *handler) registerItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UploaderID string `json:"uploader_id"`
		Title      string `json:"title"`
		Price      int64  `json:"price"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	item, err := h.app.Catalog.Register(r.Context(), mux.Vars(r)["id"], payload.UploaderID, payload.Title, payload.Price)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Catalog.List(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.app.Catalog.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *handler) deposit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.app.Ledger.Deposit(r.Context(), mux.Vars(r)["id"], payload.Amount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handler) purchase(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ItemID string `json:"item_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.app.Ledger.Purchase(r.Context(), mux.Vars(r)["id"], payload.ItemID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount int64  `json:"amount"`
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	caller := middleware.CallerAddress(r.Context())
	if caller == "" {
		caller = payload.Caller
	}

	rec, err := h.app.Ledger.Withdraw(r.Context(), mux.Vars(r)["id"], payload.Amount, caller)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Ledger.GetTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) accountTransactions(w http.ResponseWriter, r *http.Request) {
	recs, err := h.app.Ledger.TransactionsForAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *handler) platformTransactions(w http.ResponseWriter, r *http.Request) {
	recs, err := h.app.Ledger.TransactionsForPlatform(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledgersvc.ErrPlatformNotFound),
		errors.Is(err, ledgersvc.ErrAccountNotFound),
		errors.Is(err, ledgersvc.ErrItemNotFound),
		errors.Is(err, ledgersvc.ErrTransactionNotFound),
		errors.Is(err, accounts.ErrAccountNotFound),
		errors.Is(err, accounts.ErrPlatformNotFound),
		errors.Is(err, catalogsvc.ErrItemNotFound),
		errors.Is(err, catalogsvc.ErrUploaderNotFound):
		return http.StatusNotFound
	case errors.Is(err, accounts.ErrDuplicateAccount):
		return http.StatusConflict
	case errors.Is(err, ledgersvc.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, balance.ErrInsufficientFunds),
		errors.Is(err, ledgersvc.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, balance.ErrNegativeAmount),
		errors.Is(err, balance.ErrOverflow),
		errors.Is(err, catalogsvc.ErrInvalidPrice),
		errors.Is(err, catalogsvc.ErrTitleRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
