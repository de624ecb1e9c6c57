package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	IncomeCategory  string
	ExpenseCategory string

	// Meta carries the identity and bookkeeping fields every ledger-owned
	// record shares: id, owner, optimistic version and timestamps. It is
	// embedded by value; there is no entity base class and no implicit
	// lifecycle hook — constructors and update paths stamp timestamps
	// explicitly.
	Meta struct {
		ID        int64
		UserID    string
		AccountID int64
		Version   int64
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Income is a dated, categorized earning owned by a user and an account.
	Income struct {
		Meta
		Category IncomeCategory
		Label    string
		Note     string
		Amount   decimal.Decimal
		Date     time.Time
	}

	// Expense is a dated, categorized spending record. BudgetID is the
	// optional back-reference to the budget it is attached to; zero means
	// unattached. The budget side holds only expense ids, so there is no
	// object cycle between the two.
	Expense struct {
		Meta
		Category ExpenseCategory
		Label    string
		Note     string
		Amount   decimal.Decimal
		Date     time.Time
		BudgetID int64
	}

	// Budget is a capped allocation against an expense category and a date
	// range. Remaining and Progress are derived caches, rewritten on every
	// attach/detach and never computed lazily for the stored value.
	Budget struct {
		Meta
		Category  ExpenseCategory
		StartDate time.Time
		EndDate   time.Time
		Amount    decimal.Decimal
		Remaining decimal.Decimal
		Progress  decimal.Decimal
	}

	// Goal is a savings target with a due date. It carries no derived state.
	Goal struct {
		Meta
		Label   string
		DueDate time.Time
		Target  decimal.Decimal
	}

	// Account lives in the account service. Balance is a cache over the
	// ledger's income and expense sums; it is re-derivable at any time and
	// only the balance aggregator writes it. BalanceRefreshedAt is zero until
	// the first recompute.
	Account struct {
		ID                 int64
		UserID             string
		Balance            decimal.Decimal
		BalanceRefreshedAt time.Time
		Version            int64
		CreatedAt          time.Time
		UpdatedAt          time.Time
	}
)

const (
	IncomeSalary       IncomeCategory = "salary"
	IncomeStudentGrant IncomeCategory = "student_grant"
	IncomeGift         IncomeCategory = "gift"
	IncomeInvestment   IncomeCategory = "investment"
)

const (
	ExpenseGroceries     ExpenseCategory = "groceries"
	ExpenseRent          ExpenseCategory = "rent"
	ExpenseTransport     ExpenseCategory = "transport"
	ExpenseEntertainment ExpenseCategory = "entertainment"
	ExpenseEducation     ExpenseCategory = "education"
	ExpenseHealth        ExpenseCategory = "health"
	ExpenseInsurance     ExpenseCategory = "insurance"
	ExpenseClothing      ExpenseCategory = "clothing"
	ExpenseTravel        ExpenseCategory = "travel"
	ExpenseLeisure       ExpenseCategory = "leisure"
	ExpenseInvestment    ExpenseCategory = "investment"
	ExpenseOther         ExpenseCategory = "other"
)

var incomeCategories = map[IncomeCategory]struct{}{
	IncomeSalary:       {},
	IncomeStudentGrant: {},
	IncomeGift:         {},
	IncomeInvestment:   {},
}

var expenseCategories = map[ExpenseCategory]struct{}{
	ExpenseGroceries:     {},
	ExpenseRent:          {},
	ExpenseTransport:     {},
	ExpenseEntertainment: {},
	ExpenseEducation:     {},
	ExpenseHealth:        {},
	ExpenseInsurance:     {},
	ExpenseClothing:      {},
	ExpenseTravel:        {},
	ExpenseLeisure:       {},
	ExpenseInvestment:    {},
	ExpenseOther:         {},
}

func (c IncomeCategory) Valid() bool {
	_, ok := incomeCategories[c]
	return ok
}

func (c ExpenseCategory) Valid() bool {
	_, ok := expenseCategories[c]
	return ok
}

// NewMeta stamps a fresh record: version 1, both timestamps set to now.
func NewMeta(userID string, accountID int64, now time.Time) Meta {
	return Meta{
		UserID:    userID,
		AccountID: accountID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the modification timestamp. Called on every write path.
func (m *Meta) Touch(now time.Time) {
	m.UpdatedAt = now
}

func (m Meta) validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return ErrMissingUser
	}
	if m.AccountID <= 0 {
		return ErrMissingAccount
	}
	return nil
}

func (i Income) Validate() error {
	if err := i.Meta.validate(); err != nil {
		return err
	}
	if !i.Category.Valid() {
		return ErrInvalidCategory
	}
	if i.Date.IsZero() {
		return ErrInvalidDate
	}
	if i.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if e.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Attached reports whether the expense currently references a budget.
func (e Expense) Attached() bool {
	return e.BudgetID != 0
}

func (b Budget) Validate() error {
	if err := b.Meta.validate(); err != nil {
		return err
	}
	if !b.Category.Valid() {
		return ErrInvalidCategory
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() || b.EndDate.Before(b.StartDate) {
		return ErrInvalidDate
	}
	if b.Amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Recompute rewrites the derived fields from the currently attached expenses:
// remaining = amount − Σ(expense amounts), progress per ProgressOf. Idempotent;
// the allocation engine calls it after every membership change and the repair
// path may call it standalone.
func (b *Budget) Recompute(expenses []Expense) {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	b.Remaining = b.Amount.Sub(total)
	b.Progress = ProgressOf(b.Amount, b.Remaining)
}

func (g Goal) Validate() error {
	if err := g.Meta.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(g.Label) == "" {
		return ErrEmptyLabel
	}
	if g.DueDate.IsZero() {
		return ErrInvalidDate
	}
	if g.Target.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// DueSoon reports whether the goal's due date falls inside the reminder
// horizon, i.e. strictly before today plus horizon days.
func (g Goal) DueSoon(today time.Time, horizonDays int) bool {
	return g.DueDate.Before(today.AddDate(0, 0, horizonDays))
}
