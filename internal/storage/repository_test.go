package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finanzen/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

var testNow = time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)

func testBudget(t *testing.T, amount string) core.Budget {
	t.Helper()
	return core.Budget{
		Meta:      core.NewMeta("user-1", 1, testNow),
		Category:  core.ExpenseGroceries,
		StartDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		Amount:    mustDecimal(t, amount),
	}
}

func testExpense(t *testing.T, amount, date string) core.Expense {
	t.Helper()
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		t.Fatalf("bad date %q: %v", date, err)
	}
	return core.Expense{
		Meta:     core.NewMeta("user-1", 1, testNow),
		Category: core.ExpenseGroceries,
		Label:    "shop",
		Amount:   mustDecimal(t, amount),
		Date:     d,
	}
}

func testIncome(t *testing.T, amount, date string) core.Income {
	t.Helper()
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		t.Fatalf("bad date %q: %v", date, err)
	}
	return core.Income{
		Meta:     core.NewMeta("user-1", 1, testNow),
		Category: core.IncomeSalary,
		Label:    "salary",
		Amount:   mustDecimal(t, amount),
		Date:     d,
	}
}

func TestCreateBudgetResetsDerivedFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	b := testBudget(t, "500")
	// Whatever the caller put in the derived fields is ignored.
	b.Remaining = mustDecimal(t, "123")
	b.Progress = mustDecimal(t, "99")

	if err := repo.CreateBudget(ctx, &b); err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}

	got, err := repo.GetBudget(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBudget() error = %v", err)
	}
	if !got.Remaining.Equal(mustDecimal(t, "500")) {
		t.Errorf("Remaining = %s, want 500", got.Remaining)
	}
	if !got.Progress.IsZero() {
		t.Errorf("Progress = %s, want 0", got.Progress)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
}

func TestSumRecordsPeriodFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, in := range []core.Income{
		testIncome(t, "3000", "2026-02-01"),
		testIncome(t, "150.50", "2026-02-28"),
		testIncome(t, "999", "2026-03-01"), // outside the window
	} {
		income := in
		if err := repo.CreateIncome(ctx, &income); err != nil {
			t.Fatalf("CreateIncome() error = %v", err)
		}
	}
	for _, e := range []core.Expense{
		testExpense(t, "1875.50", "2026-02-14"),
		testExpense(t, "42", "2026-01-31"), // outside the window
	} {
		expense := e
		if err := repo.CreateExpense(ctx, &expense); err != nil {
			t.Fatalf("CreateExpense() error = %v", err)
		}
	}

	p := core.Period{
		From: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
	}

	incomeSum, err := repo.SumIncome(ctx, 1, p)
	if err != nil {
		t.Fatalf("SumIncome() error = %v", err)
	}
	if !incomeSum.Equal(mustDecimal(t, "3150.50")) {
		t.Errorf("income sum = %s, want 3150.50", incomeSum)
	}

	expenseSum, err := repo.SumExpense(ctx, 1, p)
	if err != nil {
		t.Fatalf("SumExpense() error = %v", err)
	}
	if !expenseSum.Equal(mustDecimal(t, "1875.50")) {
		t.Errorf("expense sum = %s, want 1875.50", expenseSum)
	}

	// An account with no records sums to zero, not an error.
	emptySum, err := repo.SumIncome(ctx, 42, p)
	if err != nil {
		t.Fatalf("SumIncome() empty account error = %v", err)
	}
	if !emptySum.IsZero() {
		t.Errorf("empty account sum = %s, want 0", emptySum)
	}
}

func TestUpdateBudgetDerivedVersionGuard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	b := testBudget(t, "500")
	if err := repo.CreateBudget(ctx, &b); err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}

	if err := repo.UpdateBudgetDerived(ctx, b.ID, mustDecimal(t, "380"), mustDecimal(t, "24"), 1, testNow); err != nil {
		t.Fatalf("UpdateBudgetDerived() error = %v", err)
	}

	// Same token again: someone else already bumped the version.
	err := repo.UpdateBudgetDerived(ctx, b.ID, mustDecimal(t, "300"), mustDecimal(t, "40"), 1, testNow)
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("stale UpdateBudgetDerived() error = %v, want ErrConflict", err)
	}

	err = repo.UpdateBudgetDerived(ctx, 9999, mustDecimal(t, "1"), mustDecimal(t, "1"), 1, testNow)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing UpdateBudgetDerived() error = %v, want ErrNotFound", err)
	}
}

func TestSetExpenseBudget(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	b := testBudget(t, "500")
	if err := repo.CreateBudget(ctx, &b); err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}
	e := testExpense(t, "120", "2026-02-10")
	if err := repo.CreateExpense(ctx, &e); err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}

	if err := repo.SetExpenseBudget(ctx, e.ID, b.ID, e.Version, testNow); err != nil {
		t.Fatalf("SetExpenseBudget() error = %v", err)
	}
	got, err := repo.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExpense() error = %v", err)
	}
	if got.BudgetID != b.ID {
		t.Errorf("BudgetID = %d, want %d", got.BudgetID, b.ID)
	}
	if got.Version != e.Version+1 {
		t.Errorf("Version = %d, want %d", got.Version, e.Version+1)
	}

	// Zero clears the reference back to NULL.
	if err := repo.SetExpenseBudget(ctx, e.ID, 0, got.Version, testNow); err != nil {
		t.Fatalf("SetExpenseBudget() clear error = %v", err)
	}
	got, err = repo.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExpense() error = %v", err)
	}
	if got.Attached() {
		t.Errorf("expense still attached, BudgetID = %d", got.BudgetID)
	}

	err = repo.SetExpenseBudget(ctx, e.ID, b.ID, 1, testNow)
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("stale SetExpenseBudget() error = %v, want ErrConflict", err)
	}
}

func TestDeleteBudgetDetachesExpenses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	b := testBudget(t, "500")
	if err := repo.CreateBudget(ctx, &b); err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}
	e := testExpense(t, "120", "2026-02-10")
	e.BudgetID = b.ID
	if err := repo.CreateExpense(ctx, &e); err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}

	if err := repo.DeleteBudget(ctx, b.ID, testNow); err != nil {
		t.Fatalf("DeleteBudget() error = %v", err)
	}

	if _, err := repo.GetBudget(ctx, b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetBudget() after delete error = %v, want ErrNotFound", err)
	}

	// The expense survives, detached.
	got, err := repo.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExpense() after budget delete error = %v", err)
	}
	if got.Attached() {
		t.Errorf("expense still attached, BudgetID = %d", got.BudgetID)
	}

	if err := repo.DeleteBudget(ctx, 9999, testNow); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteBudget() missing error = %v, want ErrNotFound", err)
	}
}

func TestAccountBalanceVersionGuard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	acct, err := repo.CreateAccount(ctx, "user-1", testNow)
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if !acct.Balance.IsZero() {
		t.Errorf("fresh balance = %s, want 0", acct.Balance)
	}

	refreshed := testNow.Add(time.Hour)
	if err := repo.UpdateAccountBalance(ctx, acct.ID, mustDecimal(t, "1124.50"), refreshed, acct.Version); err != nil {
		t.Fatalf("UpdateAccountBalance() error = %v", err)
	}

	got, err := repo.GetAccount(ctx, acct.ID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if !got.Balance.Equal(mustDecimal(t, "1124.50")) {
		t.Errorf("balance = %s, want 1124.50", got.Balance)
	}
	if !got.BalanceRefreshedAt.Equal(refreshed) {
		t.Errorf("refreshed at = %v, want %v", got.BalanceRefreshedAt, refreshed)
	}
	if got.Version != acct.Version+1 {
		t.Errorf("version = %d, want %d", got.Version, acct.Version+1)
	}

	err = repo.UpdateAccountBalance(ctx, acct.ID, decimal.Zero, refreshed, acct.Version)
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("stale UpdateAccountBalance() error = %v, want ErrConflict", err)
	}
	err = repo.UpdateAccountBalance(ctx, 9999, decimal.Zero, refreshed, 1)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing UpdateAccountBalance() error = %v, want ErrNotFound", err)
	}

	byUser, err := repo.GetAccountByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetAccountByUser() error = %v", err)
	}
	if byUser.ID != acct.ID {
		t.Errorf("GetAccountByUser() ID = %d, want %d", byUser.ID, acct.ID)
	}
}

func TestListBudgetsForMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	current := testBudget(t, "500")
	if err := repo.CreateBudget(ctx, &current); err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}

	past := testBudget(t, "300")
	past.StartDate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past.EndDate = time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	if err := repo.CreateBudget(ctx, &past); err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}

	budgets, err := repo.ListBudgetsForMonth(ctx, "user-1", testNow)
	if err != nil {
		t.Fatalf("ListBudgetsForMonth() error = %v", err)
	}
	if len(budgets) != 1 {
		t.Fatalf("budgets = %d, want 1", len(budgets))
	}
	if budgets[0].ID != current.ID {
		t.Errorf("listed budget = %d, want %d", budgets[0].ID, current.ID)
	}
}

func TestGoalsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	later := core.Goal{
		Meta:    core.NewMeta("user-1", 1, testNow),
		Label:   "vacation",
		DueDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Target:  mustDecimal(t, "1500"),
	}
	sooner := core.Goal{
		Meta:    core.NewMeta("user-1", 1, testNow),
		Label:   "new laptop",
		DueDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Target:  mustDecimal(t, "1200"),
	}
	for _, g := range []*core.Goal{&later, &sooner} {
		if err := repo.CreateGoal(ctx, g); err != nil {
			t.Fatalf("CreateGoal() error = %v", err)
		}
	}

	goals, err := repo.ListGoals(ctx)
	if err != nil {
		t.Fatalf("ListGoals() error = %v", err)
	}
	if len(goals) != 2 {
		t.Fatalf("goals = %d, want 2", len(goals))
	}
	if goals[0].Label != "new laptop" {
		t.Errorf("goals not ordered by due date: first = %q", goals[0].Label)
	}

	if err := repo.DeleteGoal(ctx, sooner.ID); err != nil {
		t.Fatalf("DeleteGoal() error = %v", err)
	}
	if err := repo.DeleteGoal(ctx, sooner.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("repeat DeleteGoal() error = %v, want ErrNotFound", err)
	}
}
