package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// TransferService moves money between two accounts of one user as a pair of
// linked transactions that are always written, changed and removed together.
type TransferService struct {
	store      *storage.Store
	categories *CategoryResolver
	logger     *log.Logger
	now        Clock
}

func NewTransferService(store *storage.Store, categories *CategoryResolver, logger *log.Logger) *TransferService {
	return &TransferService{
		store:      store,
		categories: categories,
		logger:     logger.WithComponent(log.ComponentTransfer),
		now:        utcNow,
	}
}

type CreateTransferParams struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	Date          core.Date // defaults to today (UTC)
	Description   string
}

type UpdateTransferParams CreateTransferParams

type TransferResult struct {
	Transfer    core.Transfer
	FromLeg     core.Transaction
	ToLeg       core.Transaction
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
	// FullyRepaid is set when the destination is a debt account whose
	// balance reached exactly zero.
	FullyRepaid bool
}

// CreateTransfer writes the transfer and both legs, or nothing.
//
// Checks run in a fixed order and the first failure is returned: both
// accounts exist and belong to the user (ErrNotFound), they differ
// (ErrSameAccount), the amount is positive (ErrInvalidAmount), currencies
// match (ErrCurrencyMismatch), the source can fund it (ErrInsufficientFunds,
// ErrWithdrawalNotAllowed), and a debt destination does not go above zero
// (ErrDebtWouldBePositive).
func (s *TransferService) CreateTransfer(ctx context.Context, userID string, p CreateTransferParams) (TransferResult, error) {
	var result TransferResult
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		locked, err := q.LockAccounts(ctx, userID, p.FromAccountID, p.ToAccountID)
		if err != nil {
			return err
		}

		t := s.newTransfer(userID, p)
		plan, err := s.plan(ctx, q, locked, t, nil)
		if err != nil {
			return err
		}

		category, err := s.categories.Transfer(ctx, q, userID)
		if err != nil {
			return err
		}
		from, to := transferLegs(t, category.ID)

		if err := q.CreateTransfer(ctx, t); err != nil {
			return err
		}
		if err := q.CreateTransaction(ctx, from); err != nil {
			return err
		}
		if err := q.CreateTransaction(ctx, to); err != nil {
			return err
		}

		balances, err := reconcileAll(ctx, q, locked)
		if err != nil {
			return err
		}
		result = TransferResult{
			Transfer:    t,
			FromLeg:     from,
			ToLeg:       to,
			FromBalance: balances[t.FromAccountID],
			ToBalance:   balances[t.ToAccountID],
			FullyRepaid: plan.fullyRepaid,
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "Transfer rejected", err, userID, p.FromAccountID, p.ToAccountID)
		return TransferResult{}, fmt.Errorf("create transfer: %w", err)
	}

	s.logger.WithFields(transferFields(log.OpCreate, result.Transfer)).
		InfoContext(ctx, "Transfer created", "fully_repaid", result.FullyRepaid)
	return result, nil
}

// UpdateTransfer changes amount, accounts, date or description of a
// transfer. The checks of CreateTransfer are re-run against the ledger with
// the old legs removed, and every account on either version is reconciled.
func (s *TransferService) UpdateTransfer(ctx context.Context, userID, transferID string, p UpdateTransferParams) (TransferResult, error) {
	var result TransferResult
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		existing, locked, err := lockTransfer(ctx, q, userID, transferID, p.FromAccountID, p.ToAccountID)
		if err != nil {
			return err
		}

		t := s.newTransfer(userID, CreateTransferParams(p))
		t.ID = existing.ID
		t.FromLegID = existing.FromLegID
		t.ToLegID = existing.ToLegID
		t.CreatedAt = existing.CreatedAt

		oldLegs := []string{existing.FromLegID, existing.ToLegID}
		plan, err := s.plan(ctx, q, locked, t, oldLegs)
		if err != nil {
			return err
		}

		category, err := s.categories.Transfer(ctx, q, userID)
		if err != nil {
			return err
		}
		from, to := transferLegs(t, category.ID)

		// Legs are replaced rather than edited so both sides carry the
		// new accounts; the transfer row keeps its id and creation time.
		for _, id := range oldLegs {
			if err := q.DeleteTransaction(ctx, userID, id); err != nil {
				return err
			}
		}
		if err := q.UpdateTransfer(ctx, t); err != nil {
			return err
		}
		if err := q.CreateTransaction(ctx, from); err != nil {
			return err
		}
		if err := q.CreateTransaction(ctx, to); err != nil {
			return err
		}

		balances, err := reconcileAll(ctx, q, locked)
		if err != nil {
			return err
		}
		result = TransferResult{
			Transfer:    t,
			FromLeg:     from,
			ToLeg:       to,
			FromBalance: balances[t.FromAccountID],
			ToBalance:   balances[t.ToAccountID],
			FullyRepaid: plan.fullyRepaid,
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "Transfer update rejected", err, userID, p.FromAccountID, p.ToAccountID)
		return TransferResult{}, fmt.Errorf("update transfer %s: %w", transferID, err)
	}

	s.logger.WithFields(transferFields(log.OpUpdate, result.Transfer)).
		InfoContext(ctx, "Transfer updated", "fully_repaid", result.FullyRepaid)
	return result, nil
}

// DeleteTransfer removes the transfer with both legs and reconciles both
// accounts.
func (s *TransferService) DeleteTransfer(ctx context.Context, userID, transferID string) error {
	var deleted core.Transfer
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		existing, locked, err := lockTransfer(ctx, q, userID, transferID)
		if err != nil {
			return err
		}
		deleted = existing
		if err := q.DeleteTransfer(ctx, userID, transferID); err != nil {
			return err
		}
		_, err = reconcileAll(ctx, q, locked)
		return err
	})
	if err != nil {
		s.logFailure(ctx, "Transfer delete rejected", err, userID, "", "")
		return fmt.Errorf("delete transfer %s: %w", transferID, err)
	}

	s.logger.WithFields(transferFields(log.OpDelete, deleted)).
		InfoContext(ctx, "Transfer deleted")
	return nil
}

func (s *TransferService) GetTransfer(ctx context.Context, userID, transferID string) (core.Transfer, error) {
	return s.store.Queries().GetTransfer(ctx, userID, transferID)
}

func (s *TransferService) ListTransfers(ctx context.Context, userID string) ([]core.Transfer, error) {
	return s.store.Queries().ListTransfers(ctx, userID)
}

// lockTransfer loads the transfer with its current accounts and any extra
// accounts locked.
func lockTransfer(ctx context.Context, q *storage.Queries, userID, transferID string, extra ...string) (core.Transfer, map[string]core.Account, error) {
	return lockFor(ctx, q, userID,
		func() (core.Transfer, error) { return q.GetTransfer(ctx, userID, transferID) },
		func(t core.Transfer) []string { return []string{t.FromAccountID, t.ToAccountID} },
		extra...)
}

func (s *TransferService) newTransfer(userID string, p CreateTransferParams) core.Transfer {
	now := s.now()
	t := core.Transfer{
		ID:            uuid.NewString(),
		UserID:        userID,
		FromAccountID: p.FromAccountID,
		ToAccountID:   p.ToAccountID,
		FromLegID:     uuid.NewString(),
		ToLegID:       uuid.NewString(),
		Amount:        core.RoundMoney(p.Amount),
		Date:          p.Date,
		Description:   strings.TrimSpace(p.Description),
		CreatedAt:     now,
	}
	if t.Date.IsZero() {
		t.Date = core.DateOf(now)
	}
	return t
}

// transferLegs builds the expense leg on the source and the income leg on
// the destination, each pointing at the other.
func transferLegs(t core.Transfer, categoryID string) (core.Transaction, core.Transaction) {
	leg := core.Transaction{
		UserID:      t.UserID,
		CategoryID:  categoryID,
		Amount:      t.Amount,
		Date:        t.Date,
		Description: t.Description,
		TransferID:  t.ID,
		Time:        core.ClockOf(t.CreatedAt),
		CreatedAt:   t.CreatedAt,
	}

	from := leg
	from.ID = t.FromLegID
	from.AccountID = t.FromAccountID
	from.Direction = core.Expense
	from.PairedTransactionID = t.ToLegID

	to := leg
	to.ID = t.ToLegID
	to.AccountID = t.ToAccountID
	to.Direction = core.Income
	to.PairedTransactionID = t.FromLegID
	return from, to
}

type transferPlan struct {
	fullyRepaid bool
}

// plan runs the ordered transfer checks against the locked accounts. The
// removed legs, when given, are excluded from the balances first.
func (s *TransferService) plan(ctx context.Context, q *storage.Queries, locked map[string]core.Account, t core.Transfer, removed []string) (transferPlan, error) {
	for _, id := range []string{t.FromAccountID, t.ToAccountID} {
		if _, ok := locked[id]; !ok {
			return transferPlan{}, fmt.Errorf("account %q: %w", id, core.ErrNotFound)
		}
	}
	if t.FromAccountID == t.ToAccountID {
		return transferPlan{}, core.NewValidationError("to_account_id", "must differ from from_account_id", core.ErrSameAccount)
	}
	if err := core.ValidateAmount(t.Amount); err != nil {
		return transferPlan{}, core.NewValidationError("amount", "must be greater than zero", core.ErrInvalidAmount)
	}
	if len(t.Description) > 255 {
		return transferPlan{}, core.NewValidationError("description", "too long (max 255 characters)", nil)
	}

	from, to := locked[t.FromAccountID], locked[t.ToAccountID]
	if from.Currency != to.Currency {
		return transferPlan{}, core.Conflict(core.ErrCurrencyMismatch, "%s to %s", from.Currency, to.Currency)
	}

	if !from.AllowsWithdrawal() {
		return transferPlan{}, core.Conflict(core.ErrWithdrawalNotAllowed, "account %s", from.ID)
	}
	if !from.IsDebt() {
		available, err := projected(ctx, q, from, removed, nil)
		if err != nil {
			return transferPlan{}, err
		}
		if available.LessThan(t.Amount) {
			return transferPlan{}, core.Conflict(core.ErrInsufficientFunds,
				"account %s holds %s, transfer needs %s", from.ID,
				available.StringFixed(core.MoneyPlaces), t.Amount.StringFixed(core.MoneyPlaces))
		}
	}

	var plan transferPlan
	if to.IsDebt() {
		incoming := core.Transaction{ID: t.ToLegID, AccountID: to.ID, Amount: t.Amount, Direction: core.Income}
		after, err := projected(ctx, q, to, removed, []core.Transaction{incoming})
		if err != nil {
			return transferPlan{}, err
		}
		if after.IsPositive() {
			return transferPlan{}, core.Conflict(core.ErrDebtWouldBePositive,
				"repaying %s would leave account %s at %s", t.Amount.StringFixed(core.MoneyPlaces),
				to.ID, after.StringFixed(core.MoneyPlaces))
		}
		plan.fullyRepaid = after.IsZero()
	}
	return plan, nil
}

func projected(ctx context.Context, q *storage.Queries, a core.Account, removed []string, added []core.Transaction) (decimal.Decimal, error) {
	current, err := q.ListTransactions(ctx, a.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return core.ProjectBalance(a, current, removed, added), nil
}

func transferFields(op string, t core.Transfer) log.LogFields {
	return log.NewFields().
		WithOperation(op).
		WithUser(t.UserID).
		WithTransfer(t.ID, t.FromAccountID, t.ToAccountID).
		WithAmount(t.Amount.StringFixed(core.MoneyPlaces))
}

func (s *TransferService) logFailure(ctx context.Context, msg string, err error, userID, fromID, toID string) {
	s.logger.WarnContext(ctx, msg,
		log.FieldUserID, userID,
		log.FieldFromAccountID, fromID,
		log.FieldToAccountID, toID,
		log.FieldErrorType, errorType(err),
		log.FieldError, err)
}
