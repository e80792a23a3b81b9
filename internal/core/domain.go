package core

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindRegular AccountKind = "regular"
	KindDebt    AccountKind = "debt"
	KindSavings AccountKind = "savings"
)

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

const (
	CategoryIncome   CategoryType = "income"
	CategoryExpense  CategoryType = "expense"
	CategoryTransfer CategoryType = "transfer"
)

// Reserved system categories, created lazily per user on first use.
const (
	TransferCategoryName = "Transfer"
	InterestCategoryName = "Interest"
)

const dateLayout = "2006-01-02"

type (
	AccountKind  string
	Direction    string
	CategoryType string

	Date struct {
		time.Time
	}

	// ClockTime is a local time of day with minute precision.
	ClockTime struct {
		Hour   int
		Minute int
	}

	Account struct {
		ID        string
		UserID    string
		Name      string
		Currency  string
		Kind      AccountKind
		Balance   decimal.Decimal
		Debt      *DebtTerms    // set only for KindDebt
		Savings   *SavingsTerms // set only for KindSavings
		CreatedAt time.Time
	}

	DebtTerms struct {
		InitialAmount decimal.Decimal
		CreditorName  string
		DueDate       Date
		Notes         string
	}

	SavingsTerms struct {
		InterestRate      decimal.Decimal // percent per year, 0-100
		DepositTermMonths int
		DepositStartDate  Date
		DepositEndDate    Date
		AutoRenewal       bool
		WithdrawalAllowed bool
		TargetAmount      decimal.Decimal
		LastInterestDate  Date // zero means never accrued
	}

	Transaction struct {
		ID                  string
		UserID              string
		AccountID           string
		CategoryID          string
		Amount              decimal.Decimal
		Direction           Direction
		Date                Date
		Time                ClockTime
		Description         string
		TransferID          string
		PairedTransactionID string
		CreatedAt           time.Time
	}

	// Transfer owns the two legs of a movement between accounts.
	Transfer struct {
		ID            string
		UserID        string
		FromAccountID string
		ToAccountID   string
		FromLegID     string
		ToLegID       string
		Amount        decimal.Decimal
		Date          Date
		Description   string
		CreatedAt     time.Time
	}

	Category struct {
		ID     string
		UserID string
		Name   string
		Type   CategoryType
		System bool
	}

	NotificationSetting struct {
		ID               string
		UserID           string
		Enabled          bool
		ReminderTime     *ClockTime
		TimezoneLabel    string
		UTCOffsetMinutes int
		DaysOfWeek       []time.Weekday
		NextSendAt       *time.Time
		LastSentAt       *time.Time
	}
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// AllWeekdays is the default reminder schedule.
var AllWeekdays = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// AddMonths adds n calendar months, clamping the day to the end of the
// target month (Jan 31 + 1 month = Feb 28 or 29).
func (d Date) AddMonths(n int) Date {
	y, m, day := d.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	last := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), int(first.Month()), day)
}

// OnOrAfter reports whether d is the same day as o or later.
func (d Date) OnOrAfter(o Date) bool {
	return !d.Before(o.Time)
}

// Value stores dates as YYYY-MM-DD text; zero dates become NULL.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Format(dateLayout), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v.UTC())
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d *Date) scanString(s string) error {
	if s == "" {
		*d = Date{}
		return nil
	}
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseClockTime parses HH:MM in 24-hour format.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// ClockOf returns the time of day of t.
func ClockOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

func (c ClockTime) Value() (driver.Value, error) {
	return c.String(), nil
}

func (c *ClockTime) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scan clock time: unsupported type %T", src)
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (k AccountKind) Valid() bool {
	switch k {
	case KindRegular, KindDebt, KindSavings:
		return true
	}
	return false
}

func (d Direction) Valid() bool {
	return d == Income || d == Expense
}

func (t CategoryType) Valid() bool {
	switch t {
	case CategoryIncome, CategoryExpense, CategoryTransfer:
		return true
	}
	return false
}

// Signed returns the transaction's contribution to its account balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Direction == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// IsTransferLeg reports whether the transaction belongs to a transfer.
func (t Transaction) IsTransferLeg() bool {
	return t.TransferID != ""
}

func (a Account) IsDebt() bool    { return a.Kind == KindDebt }
func (a Account) IsSavings() bool { return a.Kind == KindSavings }

// AllowsWithdrawal reports whether money may leave the account.
func (a Account) AllowsWithdrawal() bool {
	if a.Kind != KindSavings || a.Savings == nil {
		return true
	}
	return a.Savings.WithdrawalAllowed
}

// Validate checks the account fields and the kind/terms pairing.
func (a Account) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(a.Name) == "" {
		errs.Add("name", "must not be empty")
	} else if len(a.Name) > 100 {
		errs.Add("name", "too long (max 100 characters)")
	}
	if !currencyPattern.MatchString(a.Currency) {
		errs.Add("currency", "must be a 3-letter upper-case code")
	}
	switch a.Kind {
	case KindRegular:
		if a.Debt != nil || a.Savings != nil {
			errs.Add("kind", "regular account cannot carry debt or savings terms")
		}
	case KindDebt:
		if a.Savings != nil {
			errs.Add("kind", "debt account cannot carry savings terms")
		}
		if a.Debt == nil {
			errs.Add("debt", "debt terms are required")
		} else {
			a.Debt.validate(&errs)
		}
	case KindSavings:
		if a.Debt != nil {
			errs.Add("kind", "savings account cannot carry debt terms")
		}
		if a.Savings == nil {
			errs.Add("savings", "savings terms are required")
		} else {
			a.Savings.validate(&errs)
		}
	default:
		errs.Add("kind", fmt.Sprintf("unknown account kind %q", a.Kind))
	}
	return errs.Err()
}

func (t DebtTerms) validate(errs *ValidationErrors) {
	if !t.InitialAmount.IsPositive() {
		errs.Add("initial_amount", "must be greater than zero")
	}
	if strings.TrimSpace(t.CreditorName) == "" {
		errs.Add("creditor_name", "must not be empty")
	}
	if t.DueDate.IsZero() {
		errs.Add("due_date", "is required")
	}
	if len(t.Notes) > 1000 {
		errs.Add("notes", "too long (max 1000 characters)")
	}
}

var hundred = decimal.NewFromInt(100)

func (t SavingsTerms) validate(errs *ValidationErrors) {
	if t.InterestRate.IsNegative() || t.InterestRate.GreaterThan(hundred) {
		errs.Add("interest_rate", "must be between 0 and 100")
	}
	if t.DepositTermMonths < 0 {
		errs.Add("deposit_term_months", "must not be negative")
	}
	if !t.DepositStartDate.IsZero() && !t.DepositEndDate.IsZero() &&
		!t.DepositEndDate.After(t.DepositStartDate.Time) {
		errs.Add("deposit_end_date", "must be after deposit start date")
	}
	if t.TargetAmount.IsNegative() {
		errs.Add("target_amount", "must not be negative")
	}
}

// Validate checks the user-supplied transaction fields.
func (t Transaction) Validate() error {
	var errs ValidationErrors
	if err := ValidateAmount(t.Amount); err != nil {
		errs.Add("amount", "must be greater than zero")
	}
	if !t.Direction.Valid() {
		errs.Add("direction", fmt.Sprintf("must be %q or %q", Income, Expense))
	}
	if t.AccountID == "" {
		errs.Add("account_id", "is required")
	}
	if t.CategoryID == "" {
		errs.Add("category_id", "is required")
	}
	if t.Date.IsZero() {
		errs.Add("date", "is required")
	}
	if !t.Time.Valid() {
		errs.Add("time", "must be a valid HH:MM")
	}
	if len(t.Description) > 255 {
		errs.Add("description", "too long (max 255 characters)")
	}
	return errs.Err()
}

// Validate enforces the notification setting invariants.
func (s NotificationSetting) Validate() error {
	var errs ValidationErrors
	if len(s.DaysOfWeek) == 0 {
		errs.Add("days_of_week", "must not be empty")
	}
	seen := make(map[time.Weekday]bool, len(s.DaysOfWeek))
	for _, d := range s.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			errs.Add("days_of_week", fmt.Sprintf("day %d out of range 0-6", int(d)))
			continue
		}
		if seen[d] {
			errs.Add("days_of_week", fmt.Sprintf("day %d listed twice", int(d)))
		}
		seen[d] = true
	}
	if s.UTCOffsetMinutes < -12*60 || s.UTCOffsetMinutes > 14*60 {
		errs.Add("utc_offset_minutes", "must be between -720 and 840")
	}
	if s.ReminderTime != nil && !s.ReminderTime.Valid() {
		errs.Add("reminder_time", "must be a valid HH:MM")
	}
	if s.Enabled && s.ReminderTime == nil {
		errs.Add("reminder_time", "is required when reminders are enabled")
	}
	if len(s.TimezoneLabel) > 64 {
		errs.Add("timezone_label", "too long (max 64 characters)")
	}
	return errs.Err()
}

// HasWeekday reports whether reminders are allowed on day.
func (s NotificationSetting) HasWeekday(day time.Weekday) bool {
	for _, d := range s.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}
