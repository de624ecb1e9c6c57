package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"finanzen/internal/core"
	"finanzen/internal/konto"
	"finanzen/internal/log"
	"finanzen/internal/services"
	"finanzen/internal/storage"
)

// BalancePublisher notifies the account service that an account's balance
// cache is out of date.
type BalancePublisher interface {
	PublishBalanceRefresh(ctx context.Context, accountID int64, reason string) error
}

// LedgerHandlers serves the records API: incomes, expenses, budgets, goals
// and the period-sum endpoints the account service aggregates from.
type LedgerHandlers struct {
	repo      *storage.Repository
	allocator *services.BudgetAllocator
	accounts  konto.Reader
	publisher BalancePublisher
	logger    *log.Logger
}

func NewLedgerServer(addr string, repo *storage.Repository, allocator *services.BudgetAllocator, accounts konto.Reader, publisher BalancePublisher, logger *log.Logger) *Server {
	h := &LedgerHandlers{
		repo:      repo,
		allocator: allocator,
		accounts:  accounts,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentHTTP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/incomes", h.handleCreateIncome)
	mux.HandleFunc("GET /api/incomes/{id}", h.handleGetIncome)
	mux.HandleFunc("DELETE /api/incomes/{id}", h.handleDeleteIncome)
	mux.HandleFunc("POST /api/expenses", h.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/{id}", h.handleGetExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", h.handleDeleteExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}/budget", h.handleDetachExpense)
	mux.HandleFunc("GET /api/accounts/{id}/incomes", h.handleListIncomes)
	mux.HandleFunc("GET /api/accounts/{id}/expenses", h.handleListExpenses)
	mux.HandleFunc("GET /api/accounts/{id}/income-sum", h.handleIncomeSum)
	mux.HandleFunc("GET /api/accounts/{id}/expense-sum", h.handleExpenseSum)
	mux.HandleFunc("POST /api/budgets", h.handleCreateBudget)
	mux.HandleFunc("GET /api/budgets", h.handleListBudgets)
	mux.HandleFunc("GET /api/budgets/{id}", h.handleGetBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", h.handleDeleteBudget)
	mux.HandleFunc("POST /api/budgets/{id}/expenses", h.handleAttachExpense)
	mux.HandleFunc("POST /api/budgets/{id}/recompute", h.handleRecomputeBudget)
	mux.HandleFunc("POST /api/goals", h.handleCreateGoal)
	mux.HandleFunc("GET /api/goals", h.handleListGoals)
	mux.HandleFunc("DELETE /api/goals/{id}", h.handleDeleteGoal)

	return newServer(addr, mux, logger)
}

type recordRequest struct {
	UserID    string `json:"user_id"`
	AccountID int64  `json:"account_id"`
	Category  string `json:"category"`
	Label     string `json:"label"`
	Note      string `json:"note"`
	Amount    string `json:"amount"`
	Date      string `json:"date"`
}

type recordResponse struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	AccountID int64  `json:"account_id"`
	Category  string `json:"category"`
	Label     string `json:"label"`
	Note      string `json:"note,omitempty"`
	Amount    string `json:"amount"`
	Date      string `json:"date"`
	BudgetID  int64  `json:"budget_id,omitempty"`
	Version   int64  `json:"version"`
}

type budgetResponse struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	AccountID int64  `json:"account_id"`
	Category  string `json:"category"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Amount    string `json:"amount"`
	Remaining string `json:"remaining"`
	Progress  string `json:"progress"`
	Version   int64  `json:"version"`
}

func incomeBody(in core.Income) recordResponse {
	return recordResponse{
		ID:        in.ID,
		UserID:    in.UserID,
		AccountID: in.AccountID,
		Category:  string(in.Category),
		Label:     in.Label,
		Note:      in.Note,
		Amount:    in.Amount.StringFixed(2),
		Date:      in.Date.Format(time.DateOnly),
		Version:   in.Version,
	}
}

func expenseBody(e core.Expense) recordResponse {
	return recordResponse{
		ID:        e.ID,
		UserID:    e.UserID,
		AccountID: e.AccountID,
		Category:  string(e.Category),
		Label:     e.Label,
		Note:      e.Note,
		Amount:    e.Amount.StringFixed(2),
		Date:      e.Date.Format(time.DateOnly),
		BudgetID:  e.BudgetID,
		Version:   e.Version,
	}
}

func budgetBody(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:        b.ID,
		UserID:    b.UserID,
		AccountID: b.AccountID,
		Category:  string(b.Category),
		StartDate: b.StartDate.Format(time.DateOnly),
		EndDate:   b.EndDate.Format(time.DateOnly),
		Amount:    b.Amount.StringFixed(2),
		Remaining: b.Remaining.StringFixed(2),
		Progress:  b.Progress.StringFixed(2),
		Version:   b.Version,
	}
}

// verifyAccount checks the account exists on the account service before a
// record is stored for it. An unknown account is the caller's mistake, not
// ours, hence 400.
func (h *LedgerHandlers) verifyAccount(ctx context.Context, accountID int64) error {
	if accountID <= 0 {
		return core.ErrMissingAccount
	}
	if _, err := h.accounts.FindAccount(ctx, accountID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%w: unknown account %d", core.ErrBadRequest, accountID)
		}
		return err
	}
	return nil
}

// publishRefresh is best effort. The balance cache is allowed to be stale;
// a lost message only delays the refresh until the next one.
func (h *LedgerHandlers) publishRefresh(ctx context.Context, accountID int64, reason string) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishBalanceRefresh(ctx, accountID, reason); err != nil {
		h.logger.WarnContext(ctx, "Balance refresh publish failed",
			log.FieldAccountID, accountID,
			log.FieldError, err.Error())
	}
}

func (h *LedgerHandlers) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid body", core.ErrBadRequest))
		return
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		writeError(w, core.ErrInvalidDate)
		return
	}
	now := time.Now().UTC()
	income := core.Income{
		Meta:     core.NewMeta(req.UserID, req.AccountID, now),
		Category: core.IncomeCategory(req.Category),
		Label:    req.Label,
		Note:     req.Note,
		Amount:   amount,
		Date:     date,
	}
	if err := income.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := h.verifyAccount(r.Context(), income.AccountID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.CreateIncome(r.Context(), &income); err != nil {
		writeError(w, err)
		return
	}
	h.publishRefresh(r.Context(), income.AccountID, "record_created")
	writeJSON(w, http.StatusCreated, incomeBody(income))
}

func (h *LedgerHandlers) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	income, err := h.repo.GetIncome(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, incomeBody(income))
}

func (h *LedgerHandlers) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	income, err := h.repo.GetIncome(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.DeleteIncome(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.publishRefresh(r.Context(), income.AccountID, "record_deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandlers) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid body", core.ErrBadRequest))
		return
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		writeError(w, core.ErrInvalidDate)
		return
	}
	now := time.Now().UTC()
	expense := core.Expense{
		Meta:     core.NewMeta(req.UserID, req.AccountID, now),
		Category: core.ExpenseCategory(req.Category),
		Label:    req.Label,
		Note:     req.Note,
		Amount:   amount,
		Date:     date,
	}
	if err := expense.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := h.verifyAccount(r.Context(), expense.AccountID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.CreateExpense(r.Context(), &expense); err != nil {
		writeError(w, err)
		return
	}
	h.publishRefresh(r.Context(), expense.AccountID, "record_created")
	writeJSON(w, http.StatusCreated, expenseBody(expense))
}

func (h *LedgerHandlers) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	expense, err := h.repo.GetExpense(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expenseBody(expense))
}

// handleDeleteExpense removes the record entirely. When the expense was
// attached, its budget's derived fields are recomputed first so the cache
// never counts a deleted record.
func (h *LedgerHandlers) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	expense, err := h.repo.GetExpense(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if expense.Attached() {
		if _, err := h.allocator.DetachExpense(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := h.repo.DeleteExpense(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.publishRefresh(r.Context(), expense.AccountID, "record_deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandlers) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := queryPeriod(r, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	incomes, err := h.repo.ListIncomes(r.Context(), id, p)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(incomes))
	for _, in := range incomes {
		out = append(out, incomeBody(in))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LedgerHandlers) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := queryPeriod(r, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	expenses, err := h.repo.ListExpenses(r.Context(), id, p)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, expenseBody(e))
	}
	writeJSON(w, http.StatusOK, out)
}

type sumResponse struct {
	Sum string `json:"sum"`
}

func (h *LedgerHandlers) handleIncomeSum(w http.ResponseWriter, r *http.Request) {
	h.handleSum(w, r, h.repo.SumIncome)
}

func (h *LedgerHandlers) handleExpenseSum(w http.ResponseWriter, r *http.Request) {
	h.handleSum(w, r, h.repo.SumExpense)
}

func (h *LedgerHandlers) handleSum(w http.ResponseWriter, r *http.Request, sum func(context.Context, int64, core.Period) (decimal.Decimal, error)) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := queryPeriod(r, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	// Unlike record creation, an unknown account here is NotFound: the sum
	// endpoints answer for accounts, not for records.
	if _, err := h.accounts.FindAccount(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	total, err := sum(r.Context(), id, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sumResponse{Sum: total.StringFixed(2)})
}

type budgetRequest struct {
	UserID    string `json:"user_id"`
	AccountID int64  `json:"account_id"`
	Category  string `json:"category"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Amount    string `json:"amount"`
}

func (h *LedgerHandlers) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid body", core.ErrBadRequest))
		return
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		writeError(w, core.ErrInvalidDate)
		return
	}
	end, err := time.Parse(time.DateOnly, req.EndDate)
	if err != nil {
		writeError(w, core.ErrInvalidDate)
		return
	}
	now := time.Now().UTC()
	budget := core.Budget{
		Meta:      core.NewMeta(req.UserID, req.AccountID, now),
		Category:  core.ExpenseCategory(req.Category),
		StartDate: start,
		EndDate:   end,
		Amount:    amount,
	}
	if err := budget.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := h.verifyAccount(r.Context(), budget.AccountID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.CreateBudget(r.Context(), &budget); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, budgetBody(budget))
}

func (h *LedgerHandlers) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	budget, err := h.repo.GetBudget(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetBody(budget))
}

func (h *LedgerHandlers) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, core.ErrMissingUser)
		return
	}
	budgets, err := h.repo.ListBudgetsForMonth(r.Context(), userID, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, budgetBody(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LedgerHandlers) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.DeleteBudget(r.Context(), id, time.Now().UTC()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type attachRequest struct {
	ExpenseID int64 `json:"expense_id"`
	recordRequest
}

func (h *LedgerHandlers) handleAttachExpense(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid body", core.ErrBadRequest))
		return
	}

	var expense core.Expense
	if req.ExpenseID > 0 {
		expense, err = h.repo.GetExpense(r.Context(), req.ExpenseID)
		if err != nil {
			writeError(w, err)
			return
		}
	} else {
		amount, err := core.ParseAmount(req.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		date, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			writeError(w, core.ErrInvalidDate)
			return
		}
		now := time.Now().UTC()
		expense = core.Expense{
			Meta:     core.NewMeta(req.UserID, req.AccountID, now),
			Category: core.ExpenseCategory(req.Category),
			Label:    req.Label,
			Note:     req.Note,
			Amount:   amount,
			Date:     date,
		}
		if err := h.verifyAccount(r.Context(), expense.AccountID); err != nil {
			writeError(w, err)
			return
		}
	}

	budget, err := h.allocator.AttachExpense(r.Context(), budgetID, expense)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.ExpenseID == 0 {
		h.publishRefresh(r.Context(), expense.AccountID, "record_created")
	}
	writeJSON(w, http.StatusOK, budgetBody(budget))
}

func (h *LedgerHandlers) handleDetachExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	budget, err := h.allocator.DetachExpense(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetBody(budget))
}

func (h *LedgerHandlers) handleRecomputeBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	budget, err := h.allocator.RecomputeRemaining(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetBody(budget))
}

type goalRequest struct {
	UserID    string `json:"user_id"`
	AccountID int64  `json:"account_id"`
	Label     string `json:"label"`
	DueDate   string `json:"due_date"`
	Target    string `json:"target"`
}

type goalResponse struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	AccountID int64  `json:"account_id"`
	Label     string `json:"label"`
	DueDate   string `json:"due_date"`
	Target    string `json:"target"`
	Version   int64  `json:"version"`
}

func goalBody(g core.Goal) goalResponse {
	return goalResponse{
		ID:        g.ID,
		UserID:    g.UserID,
		AccountID: g.AccountID,
		Label:     g.Label,
		DueDate:   g.DueDate.Format(time.DateOnly),
		Target:    g.Target.StringFixed(2),
		Version:   g.Version,
	}
}

func (h *LedgerHandlers) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid body", core.ErrBadRequest))
		return
	}
	target, err := core.ParseAmount(req.Target)
	if err != nil {
		writeError(w, err)
		return
	}
	due, err := time.Parse(time.DateOnly, req.DueDate)
	if err != nil {
		writeError(w, core.ErrInvalidDate)
		return
	}
	now := time.Now().UTC()
	goal := core.Goal{
		Meta:    core.NewMeta(req.UserID, req.AccountID, now),
		Label:   req.Label,
		DueDate: due,
		Target:  target,
	}
	if err := goal.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.CreateGoal(r.Context(), &goal); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, goalBody(goal))
}

func (h *LedgerHandlers) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.repo.ListGoals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, goalBody(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LedgerHandlers) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.DeleteGoal(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
