package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

type AccrualStatus string

const (
	AccrualAccrued AccrualStatus = "accrued"
	AccrualSkipped AccrualStatus = "skipped"
	AccrualFailed  AccrualStatus = "failed"
)

// AccrualResult reports what happened to one savings account in a sweep.
type AccrualResult struct {
	AccountID     string
	UserID        string
	Interest      decimal.Decimal
	TransactionID string
	Status        AccrualStatus
	Err           error
}

// InterestService posts monthly interest on savings accounts.
type InterestService struct {
	store       *storage.Store
	categories  *CategoryResolver
	logger      *log.Logger
	itemTimeout time.Duration
}

func NewInterestService(store *storage.Store, categories *CategoryResolver, logger *log.Logger, itemTimeout time.Duration) *InterestService {
	return &InterestService{
		store:       store,
		categories:  categories,
		logger:      logger.WithComponent(log.ComponentInterest),
		itemTimeout: itemTimeout,
	}
}

// AccrueAll walks every savings account and posts interest on the ones that
// are due. Each account is handled in its own database transaction; a
// failure is logged and recorded in the results and the sweep moves on.
// The returned error is only set when the accounts could not be listed.
func (s *InterestService) AccrueAll(ctx context.Context, now time.Time) ([]AccrualResult, error) {
	accounts, err := s.store.Queries().ListSavingsAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("accrue interest: %w", err)
	}

	today := core.DateOf(now.UTC())
	s.logger.InfoContext(ctx, "Processing interest accrual",
		"total_savings", len(accounts),
		log.FieldDate, today.String())

	results := make([]AccrualResult, 0, len(accounts))
	accrued, failed := 0, 0
	for _, a := range accounts {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if !core.ShouldAccrue(a, today) {
			results = append(results, AccrualResult{AccountID: a.ID, UserID: a.UserID, Status: AccrualSkipped})
			continue
		}

		res := s.accrueWithTimeout(ctx, a.UserID, a.ID, now)
		switch res.Status {
		case AccrualAccrued:
			accrued++
		case AccrualFailed:
			failed++
			s.logger.ErrorContext(ctx, "Failed to accrue interest",
				log.FieldUserID, a.UserID,
				log.FieldAccountID, a.ID,
				log.FieldErrorType, errorType(res.Err),
				log.FieldError, res.Err)
		}
		results = append(results, res)
	}

	s.logger.InfoContext(ctx, "Interest accrual complete",
		"accrued", accrued,
		"failed", failed,
		"total_checked", len(accounts))
	return results, nil
}

// AccrueAccount posts interest on one of the user's savings accounts if it
// is due on now's UTC date.
func (s *InterestService) AccrueAccount(ctx context.Context, userID, accountID string, now time.Time) (AccrualResult, error) {
	res := s.accrueWithTimeout(ctx, userID, accountID, now)
	if res.Status == AccrualFailed {
		return res, fmt.Errorf("accrue interest on account %s: %w", accountID, res.Err)
	}
	return res, nil
}

func (s *InterestService) accrueWithTimeout(ctx context.Context, userID, accountID string, now time.Time) AccrualResult {
	if s.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.itemTimeout)
		defer cancel()
	}
	res, err := s.accrue(ctx, userID, accountID, now)
	if err != nil {
		return AccrualResult{AccountID: accountID, UserID: userID, Status: AccrualFailed, Err: err}
	}
	return res
}

var errNotSavings = errors.New("not a savings account")

// accrue re-reads the account under lock and re-checks eligibility, so two
// sweeps racing on the same account post interest at most once.
func (s *InterestService) accrue(ctx context.Context, userID, accountID string, now time.Time) (AccrualResult, error) {
	today := core.DateOf(now.UTC())
	res := AccrualResult{AccountID: accountID, UserID: userID, Status: AccrualSkipped}

	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		locked, err := q.LockAccounts(ctx, userID, accountID)
		if err != nil {
			return err
		}
		a := locked[accountID]
		if !a.IsSavings() {
			return core.NewValidationError("account_id", errNotSavings.Error(), errNotSavings)
		}
		if !core.ShouldAccrue(a, today) {
			return nil
		}

		interest := core.ComputeInterest(a.Balance, a.Savings.InterestRate)
		if !interest.IsPositive() {
			return nil
		}

		category, err := s.categories.Interest(ctx, q, userID)
		if err != nil {
			return err
		}
		t := core.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			AccountID:   a.ID,
			CategoryID:  category.ID,
			Amount:      interest,
			Direction:   core.Income,
			Date:        today,
			Time:        core.ClockOf(now.UTC()),
			Description: fmt.Sprintf("Interest %s%% p.a.", a.Savings.InterestRate.String()),
			CreatedAt:   now.UTC(),
		}
		if err := q.CreateTransaction(ctx, t); err != nil {
			return err
		}
		if _, err := reconcile(ctx, q, a); err != nil {
			return err
		}
		if err := q.SetLastInterestDate(ctx, a.ID, today); err != nil {
			return err
		}

		res.Interest = interest
		res.TransactionID = t.ID
		res.Status = AccrualAccrued
		return nil
	})
	if err != nil {
		return AccrualResult{}, err
	}

	if res.Status == AccrualAccrued {
		s.logger.InfoContext(ctx, "Interest accrued",
			log.FieldUserID, userID,
			log.FieldAccountID, accountID,
			log.FieldTransactionID, res.TransactionID,
			log.FieldAmount, res.Interest.StringFixed(core.MoneyPlaces))
	}
	return res, nil
}
