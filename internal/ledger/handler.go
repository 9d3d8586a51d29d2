package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gracebooks/gracebooks/internal/audit"
	"github.com/gracebooks/gracebooks/internal/platform/httpx"
)

// Handler wires HTTP endpoints over the registry, engine, and balance
// reader. It adds no semantics: every rule lives in the services.
type Handler struct {
	logger   *slog.Logger
	registry *Registry
	engine   *Engine
	balances *BalanceReader
	trail    audit.Log
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, registry *Registry, engine *Engine, balances *BalanceReader, trail audit.Log) *Handler {
	return &Handler{
		logger:   logger,
		registry: registry,
		engine:   engine,
		balances: balances,
		trail:    trail,
		validate: validator.New(),
	}
}

// MountRoutes registers ledger routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.createAccount)
		r.Get("/", h.listAccounts)
		r.Route("/{accountID}", func(r chi.Router) {
			r.Get("/", h.getAccount)
			r.Patch("/", h.updateAccount)
			r.Delete("/", h.deactivateAccount)
			r.Get("/balance", h.accountBalance)
		})
	})
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.postTransaction)
		r.Get("/", h.listTransactions)
		r.Get("/{transactionID}", h.getTransaction)
		r.Post("/{transactionID}/reverse", h.reverseTransaction)
	})
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/audit/entries", h.auditEntries)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if !validCode(req.Code) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "code may contain only letters, digits, and hyphens")
		return
	}
	account, err := h.registry.Register(r.Context(), RegisterInput{
		Code:         req.Code,
		Name:         req.Name,
		Type:         AccountType(req.AccountType),
		Category:     Category(req.Category),
		Description:  req.Description,
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	filter := AccountFilter{
		Type:       AccountType(r.URL.Query().Get("type")),
		Category:   Category(r.URL.Query().Get("category")),
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}
	accounts, err := h.registry.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "accountID")
	if !ok {
		return
	}
	account, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "accountID")
	if !ok {
		return
	}
	var req updateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if req.Code != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "account code is immutable")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := UpdateInput{
		Name:         req.Name,
		Description:  req.Description,
		DisplayOrder: req.DisplayOrder,
		IsActive:     req.IsActive,
	}
	if req.Category != nil {
		category := Category(*req.Category)
		input.Category = &category
	}
	account, err := h.registry.Update(r.Context(), id, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "accountID")
	if !ok {
		return
	}
	if err := h.registry.Deactivate(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "accountID")
	if !ok {
		return
	}
	asOf, err := parseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}
	account, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	balance, err := h.balances.Balance(r.Context(), id, asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := balanceResponse{
		AccountID: id,
		Code:      account.Code,
		Balance:   balance,
		Display:   FormatAmount(balance),
		Side:      string(account.Type.NormalSide()),
	}
	if asOf != nil {
		resp.AsOf = asOf.Format("2006-01-02")
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) postTransaction(w http.ResponseWriter, r *http.Request) {
	var req postTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)
	draft := Draft{Date: date, Description: req.Description}
	for _, p := range req.Postings {
		accountID, err := uuid.Parse(p.AccountID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "account_id must be a UUID")
			return
		}
		draft.Postings = append(draft.Postings, DraftPosting{
			AccountID: accountID,
			Amount:    p.Amount,
			Direction: Direction(p.Direction),
		})
	}
	txn, err := h.engine.Post(r.Context(), draft)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := h.engine.ListTransactions(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, toTransactionResponse(txn))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "transactionID")
	if !ok {
		return
	}
	txn, err := h.engine.GetTransaction(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handler) reverseTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "transactionID")
	if !ok {
		return
	}
	txn, err := h.engine.Reverse(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}
	tb, err := h.balances.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := trialBalanceResponse{
		Seq:               tb.Seq,
		TotalDebitNormal:  tb.TotalDebitNormal,
		TotalCreditNormal: tb.TotalCreditNormal,
	}
	if tb.AsOf != nil {
		resp.AsOf = tb.AsOf.Format("2006-01-02")
	}
	for _, line := range tb.Lines {
		resp.Lines = append(resp.Lines, trialBalanceLineResponse{
			Code:    line.Code,
			Name:    line.Name,
			Type:    string(line.Type),
			Balance: line.Balance,
			Display: FormatAmount(line.Balance),
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	from := int64(0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be a non-negative integer")
			return
		}
		from = parsed
	}
	entries := make([]audit.Entry, 0)
	err := h.trail.Replay(r.Context(), from, func(e audit.Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", param+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrTransactionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrAlreadyReversed):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidCategoryForType),
		errors.Is(err, ErrNoPostings),
		errors.Is(err, ErrUnbalancedTransaction),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidDirection),
		errors.Is(err, ErrUnknownAccount),
		errors.Is(err, ErrInactiveAccount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, ErrLedgerHalted), errors.Is(err, ErrTxConflict):
		httpx.Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", err.Error())
	case errors.Is(err, ErrTrialBalanceMismatch):
		// A broken conservation invariant is fatal: stop commits until an
		// operator reconciles, no matter which path observed it first.
		h.logger.Error("trial balance invariant violated", slog.Any("error", err))
		h.engine.Halt(err.Error())
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	default:
		h.logger.Error("unhandled ledger error", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func validCode(code string) bool {
	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}

func parseAsOf(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
