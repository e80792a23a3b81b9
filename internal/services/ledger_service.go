package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// LedgerService owns accounts, categories and ordinary transactions. Every
// mutation runs in one database transaction together with the balance
// reconciliation of each account it touches.
type LedgerService struct {
	store      *storage.Store
	categories *CategoryResolver
	logger     *log.Logger
	now        Clock
}

func NewLedgerService(store *storage.Store, categories *CategoryResolver, logger *log.Logger) *LedgerService {
	return &LedgerService{
		store:      store,
		categories: categories,
		logger:     logger.WithComponent(log.ComponentLedger),
		now:        utcNow,
	}
}

type AccountParams struct {
	Name     string
	Currency string
	Kind     core.AccountKind
	Debt     *core.DebtTerms
	Savings  *core.SavingsTerms
}

type CreateTransactionParams struct {
	AccountID   string
	Amount      decimal.Decimal
	Direction   core.Direction
	CategoryID  string
	Date        core.Date
	Time        *core.ClockTime // defaults to the current UTC time of day
	Description string
}

// UpdateTransactionParams replaces every user-editable field. AccountID may
// name another account of the same user.
type UpdateTransactionParams CreateTransactionParams

func (p AccountParams) account() core.Account {
	a := core.Account{
		Name:     strings.TrimSpace(p.Name),
		Currency: strings.ToUpper(strings.TrimSpace(p.Currency)),
		Kind:     p.Kind,
	}
	if p.Debt != nil {
		d := *p.Debt
		d.InitialAmount = core.RoundMoney(d.InitialAmount)
		a.Debt = &d
	}
	if p.Savings != nil {
		s := *p.Savings
		s.TargetAmount = core.RoundMoney(s.TargetAmount)
		s.LastInterestDate = core.Date{}
		a.Savings = &s
	}
	return a
}

// CreateAccount opens an account. Debt accounts start at minus the borrowed
// amount; every other kind starts at zero.
func (s *LedgerService) CreateAccount(ctx context.Context, userID string, p AccountParams) (core.Account, error) {
	a := p.account()
	a.ID = uuid.NewString()
	a.UserID = userID
	a.CreatedAt = s.now()
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	a.Balance = core.BaseBalance(a)

	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		return q.CreateAccount(ctx, a)
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.logger.InfoContext(ctx, "Account created",
		log.FieldUserID, userID,
		log.FieldAccountID, a.ID,
		"kind", a.Kind,
		log.FieldBalance, a.Balance.StringFixed(core.MoneyPlaces))
	return a, nil
}

// UpdateAccount replaces the account's name, currency and kind terms and
// reconciles the balance against the new base. The currency of an account
// that takes part in a transfer cannot change.
func (s *LedgerService) UpdateAccount(ctx context.Context, userID, accountID string, p AccountParams) (core.Account, error) {
	var updated core.Account
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		locked, err := q.LockAccounts(ctx, userID, accountID)
		if err != nil {
			return err
		}
		current := locked[accountID]

		next := p.account()
		next.ID = current.ID
		next.UserID = current.UserID
		next.CreatedAt = current.CreatedAt
		if next.Savings != nil && current.Savings != nil {
			next.Savings.LastInterestDate = current.Savings.LastInterestDate
		}
		if err := next.Validate(); err != nil {
			return err
		}

		if next.Currency != current.Currency {
			transfers, err := q.ListAccountTransfers(ctx, accountID)
			if err != nil {
				return err
			}
			if len(transfers) > 0 {
				return core.Conflict(core.ErrCurrencyMismatch,
					"account %s has %d transfers in %s", accountID, len(transfers), current.Currency)
			}
		}

		if err := q.UpdateAccountDetails(ctx, next); err != nil {
			return err
		}
		if next.Balance, err = reconcile(ctx, q, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("update account %s: %w", accountID, err)
	}

	s.logger.InfoContext(ctx, "Account updated",
		log.FieldUserID, userID,
		log.FieldAccountID, accountID,
		log.FieldBalance, updated.Balance.StringFixed(core.MoneyPlaces))
	return updated, nil
}

// DeleteAccount removes the account with its transactions. Transfers with
// the account on either side are removed entirely and the counterpart
// accounts reconciled.
func (s *LedgerService) DeleteAccount(ctx context.Context, userID, accountID string) error {
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetAccount(ctx, userID, accountID); err != nil {
			return err
		}
		transfers, locked, err := lockFor(ctx, q, userID,
			func() ([]core.Transfer, error) { return q.ListAccountTransfers(ctx, accountID) },
			func(ts []core.Transfer) []string {
				ids := make([]string, 0, 2*len(ts))
				for _, t := range ts {
					ids = append(ids, t.FromAccountID, t.ToAccountID)
				}
				return ids
			},
			accountID)
		if err != nil {
			return err
		}

		for _, t := range transfers {
			if err := q.DeleteTransfer(ctx, userID, t.ID); err != nil {
				return err
			}
		}
		if err := q.DeleteAccount(ctx, userID, accountID); err != nil {
			return err
		}

		delete(locked, accountID)
		_, err = reconcileAll(ctx, q, locked)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete account %s: %w", accountID, err)
	}

	s.logger.InfoContext(ctx, "Account deleted",
		log.FieldUserID, userID,
		log.FieldAccountID, accountID)
	return nil
}

func (s *LedgerService) GetAccount(ctx context.Context, userID, accountID string) (core.Account, error) {
	return s.store.Queries().GetAccount(ctx, userID, accountID)
}

func (s *LedgerService) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	return s.store.Queries().ListAccounts(ctx, userID)
}

// Summary totals the user's accounts per currency.
func (s *LedgerService) Summary(ctx context.Context, userID string) ([]core.CurrencyTotal, error) {
	accounts, err := s.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.Summarize(accounts), nil
}

// ListTransactions returns the ledger of one of the user's accounts.
func (s *LedgerService) ListTransactions(ctx context.Context, userID, accountID string) ([]core.Transaction, error) {
	q := s.store.Queries()
	if _, err := q.GetAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}
	return q.ListTransactions(ctx, accountID)
}

func (s *LedgerService) GetTransaction(ctx context.Context, userID, txID string) (core.Transaction, error) {
	return s.store.Queries().GetTransaction(ctx, userID, txID)
}

// CreateTransaction records an income or expense on one account.
func (s *LedgerService) CreateTransaction(ctx context.Context, userID string, p CreateTransactionParams) (core.Transaction, error) {
	var created core.Transaction
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		locked, err := q.LockAccounts(ctx, userID, p.AccountID)
		if err != nil {
			return err
		}
		account := locked[p.AccountID]

		t := s.newTransaction(userID, p)
		if err := s.checkTransaction(ctx, q, account, t); err != nil {
			return err
		}

		current, err := q.ListTransactions(ctx, account.ID)
		if err != nil {
			return err
		}
		projected := core.ProjectBalance(account, current, nil, []core.Transaction{t})
		if err := core.CheckBalance(account, projected); err != nil {
			return err
		}

		if err := q.CreateTransaction(ctx, t); err != nil {
			return err
		}
		if _, err := reconcile(ctx, q, account); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "Failed to create transaction", err, userID, p.AccountID)
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldUserID, userID,
		log.FieldAccountID, created.AccountID,
		log.FieldTransactionID, created.ID,
		"direction", created.Direction,
		log.FieldAmount, created.Amount.StringFixed(core.MoneyPlaces))
	return created, nil
}

// UpdateTransaction rewrites a transaction, possibly moving it to another
// account. Both the old and the new account are reconciled.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, txID string, p UpdateTransactionParams) (core.Transaction, error) {
	var updated core.Transaction
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		existing, locked, err := lockTransaction(ctx, q, userID, txID, p.AccountID)
		if err != nil {
			return err
		}
		if existing.IsTransferLeg() {
			return fmt.Errorf("transaction %s: %w", txID, core.ErrTransferLeg)
		}
		target := locked[p.AccountID]

		t := s.newTransaction(userID, CreateTransactionParams(p))
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
		if err := s.checkTransaction(ctx, q, target, t); err != nil {
			return err
		}

		for _, id := range sortedKeys(locked) {
			a := locked[id]
			current, err := q.ListTransactions(ctx, a.ID)
			if err != nil {
				return err
			}
			projected := core.ProjectBalance(a, current, []string{existing.ID}, []core.Transaction{t})
			if err := core.CheckBalance(a, projected); err != nil {
				return err
			}
		}

		if err := q.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		if _, err := reconcileAll(ctx, q, locked); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "Failed to update transaction", err, userID, p.AccountID)
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", txID, err)
	}

	s.logger.InfoContext(ctx, "Transaction updated",
		log.FieldUserID, userID,
		log.FieldAccountID, updated.AccountID,
		log.FieldTransactionID, updated.ID,
		log.FieldAmount, updated.Amount.StringFixed(core.MoneyPlaces))
	return updated, nil
}

// DeleteTransaction removes an ordinary transaction. Transfer legs are only
// removed together with their transfer.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, txID string) error {
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		existing, locked, err := lockTransaction(ctx, q, userID, txID)
		if err != nil {
			return err
		}
		if existing.IsTransferLeg() {
			return fmt.Errorf("transaction %s: %w", txID, core.ErrTransferLeg)
		}
		if err := q.DeleteTransaction(ctx, userID, txID); err != nil {
			return err
		}
		_, err = reconcile(ctx, q, locked[existing.AccountID])
		return err
	})
	if err != nil {
		s.logFailure(ctx, "Failed to delete transaction", err, userID, "")
		return fmt.Errorf("delete transaction %s: %w", txID, err)
	}

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldUserID, userID,
		log.FieldTransactionID, txID)
	return nil
}

// lockTransaction loads the transaction with its current account and any
// extra accounts locked.
func lockTransaction(ctx context.Context, q *storage.Queries, userID, txID string, extra ...string) (core.Transaction, map[string]core.Account, error) {
	return lockFor(ctx, q, userID,
		func() (core.Transaction, error) { return q.GetTransaction(ctx, userID, txID) },
		func(t core.Transaction) []string { return []string{t.AccountID} },
		extra...)
}

func (s *LedgerService) newTransaction(userID string, p CreateTransactionParams) core.Transaction {
	now := s.now()
	t := core.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		AccountID:   p.AccountID,
		CategoryID:  p.CategoryID,
		Amount:      core.RoundMoney(p.Amount),
		Direction:   p.Direction,
		Date:        p.Date,
		Time:        core.ClockOf(now),
		Description: strings.TrimSpace(p.Description),
		CreatedAt:   now,
	}
	if p.Time != nil {
		t.Time = *p.Time
	}
	if t.Date.IsZero() {
		t.Date = core.DateOf(now)
	}
	return t
}

// checkTransaction applies the ordinary-transaction rules after ownership
// of the account has been established: field validation, category
// ownership and kind, then the savings withdrawal rule.
func (s *LedgerService) checkTransaction(ctx context.Context, q *storage.Queries, account core.Account, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}

	category, err := q.GetCategory(ctx, t.UserID, t.CategoryID)
	if err != nil {
		return err
	}
	if category.Type == core.CategoryTransfer {
		return core.NewValidationError("category_id", "transfer category is reserved for transfers", nil)
	}
	if string(category.Type) != string(t.Direction) {
		return core.NewValidationError("category_id",
			fmt.Sprintf("%s category cannot be used for %s", category.Type, t.Direction), nil)
	}

	if t.Direction == core.Expense && !account.AllowsWithdrawal() {
		return core.Conflict(core.ErrWithdrawalNotAllowed, "account %s", account.ID)
	}
	return nil
}

// CreateCategory adds a user category. Transfer categories are reserved.
func (s *LedgerService) CreateCategory(ctx context.Context, userID, name string, typ core.CategoryType) (core.Category, error) {
	c := core.Category{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   strings.TrimSpace(name),
		Type:   typ,
	}
	var errs core.ValidationErrors
	if c.Name == "" {
		errs.Add("name", "must not be empty")
	} else if len(c.Name) > 100 {
		errs.Add("name", "too long (max 100 characters)")
	}
	if typ != core.CategoryIncome && typ != core.CategoryExpense {
		errs.Add("type", fmt.Sprintf("must be %q or %q", core.CategoryIncome, core.CategoryExpense))
	}
	if err := errs.Err(); err != nil {
		return core.Category{}, err
	}

	if err := s.store.Queries().CreateCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

func (s *LedgerService) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	return s.store.Queries().ListCategories(ctx, userID)
}

// ProvisionUser gives a new user a cash account in currency, the reserved
// categories and the default reminder setting. Calling it again for the
// same user changes nothing.
func (s *LedgerService) ProvisionUser(ctx context.Context, userID, currency string) error {
	now := s.now()
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		accounts, err := q.ListAccounts(ctx, userID)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			cash := core.Account{
				ID:        uuid.NewString(),
				UserID:    userID,
				Name:      "Cash",
				Currency:  strings.ToUpper(currency),
				Kind:      core.KindRegular,
				Balance:   decimal.Zero,
				CreatedAt: now,
			}
			if err := cash.Validate(); err != nil {
				return err
			}
			if err := q.CreateAccount(ctx, cash); err != nil {
				return err
			}
		}

		if _, err := s.categories.Transfer(ctx, q, userID); err != nil {
			return err
		}
		if _, err := s.categories.Interest(ctx, q, userID); err != nil {
			return err
		}

		_, err = q.GetSettingByUser(ctx, userID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		setting := DefaultNotificationSetting(userID)
		setting.NextSendAt = core.NextSendTime(setting, now)
		return q.UpsertSetting(ctx, setting, now)
	})
	if err != nil {
		return fmt.Errorf("provision user %s: %w", userID, err)
	}
	return nil
}

func (s *LedgerService) logFailure(ctx context.Context, msg string, err error, userID, accountID string) {
	fields := log.NewFields().WithUser(userID).WithError(err, errorType(err))
	if accountID != "" {
		fields.WithAccount(accountID, "")
	}
	s.logger.WithFields(fields).WarnContext(ctx, msg)
}
