// Package budget tracks the capital invested in a run and what the roles
// have spent against it.
package budget

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ratco/ratco/internal/errors"
)

// precision is the number of decimal places amounts are rounded to before
// they reach the ledger.
const precision = 6

// toDecimal converts a finite amount at ledger precision. Callers reject NaN
// and infinities first; decimal.NewFromFloat panics on them.
func toDecimal(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount).Round(precision)
}

// Usage is a read-only snapshot of the ledger.
type Usage struct {
	Invested  float64
	Spent     float64
	Remaining float64
	Charges   int
}

// Callbacks defines callbacks for budget events. Callbacks run after the
// ledger lock is released.
type Callbacks struct {
	// OnWarning is called once when spend first reaches the warning ratio.
	OnWarning func(Usage)
	// OnExhausted is called once when remaining budget first reaches zero
	// or a charge is refused.
	OnExhausted func(Usage)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithWarningRatio sets the fraction of the investment that triggers
// OnWarning. Values outside (0, 1] disable the warning.
func WithWarningRatio(ratio float64) Option {
	return func(l *Ledger) {
		l.warningRatio = ratio
	}
}

// WithCallbacks registers budget event callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(l *Ledger) {
		l.callbacks = cb
	}
}

// Ledger records invested capital and cumulative spend.
// It is safe for concurrent use; spent never exceeds invested.
type Ledger struct {
	mu           sync.Mutex
	invested     decimal.Decimal
	spent        decimal.Decimal
	charges      int
	warningRatio float64
	warned       bool
	exhausted    bool
	callbacks    Callbacks
}

// NewLedger creates an empty ledger. Nothing can be charged until Invest.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Invest sets the invested amount. It fails with ErrInvalidAmount when the
// amount is not a positive finite number or is below what has already been
// spent.
func (l *Ledger) Invest(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return errors.NewBudgetError("investment must be a finite amount", errors.ErrInvalidAmount).
			WithAmounts(amount, l.Invested(), l.Spent())
	}
	d := toDecimal(amount)
	if !d.IsPositive() {
		return errors.NewBudgetError("investment must be positive", errors.ErrInvalidAmount).
			WithAmounts(amount, l.Invested(), l.Spent())
	}

	l.mu.Lock()
	if d.LessThan(l.spent) {
		usage := l.usageLocked()
		l.mu.Unlock()
		return errors.NewBudgetError("investment below amount already spent", errors.ErrInvalidAmount).
			WithAmounts(amount, usage.Invested, usage.Spent)
	}
	l.invested = d
	if l.spent.LessThan(l.invested) {
		l.exhausted = false
	}
	l.mu.Unlock()
	return nil
}

// Charge adds amount to spent and returns the remaining budget. A charge
// that would push spent above invested fails with ErrBudgetExceeded and
// leaves spent unchanged; an infinite charge is one of those. Negative
// amounts and NaN are rejected with ErrInvalidAmount; zero is a no-op.
func (l *Ledger) Charge(amount float64) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, -1) || amount < 0 {
		return l.Remaining(), errors.NewBudgetError("charge must not be negative", errors.ErrInvalidAmount).
			WithAmounts(amount, l.Invested(), l.Spent())
	}

	l.mu.Lock()
	if math.IsInf(amount, 1) || l.spent.Add(toDecimal(amount)).GreaterThan(l.invested) {
		usage := l.usageLocked()
		fire := !l.exhausted
		l.exhausted = true
		l.mu.Unlock()
		if fire && l.callbacks.OnExhausted != nil {
			l.callbacks.OnExhausted(usage)
		}
		return usage.Remaining, errors.NewBudgetError("charge would exceed investment", errors.ErrBudgetExceeded).
			WithAmounts(amount, usage.Invested, usage.Spent)
	}

	l.spent = l.spent.Add(toDecimal(amount))
	l.charges++
	usage := l.usageLocked()

	fireWarning := false
	if !l.warned && l.warningRatio > 0 && l.warningRatio <= 1 &&
		l.spent.GreaterThanOrEqual(l.invested.Mul(decimal.NewFromFloat(l.warningRatio))) {
		l.warned = true
		fireWarning = true
	}
	fireExhausted := false
	if !l.exhausted && l.spent.Equal(l.invested) {
		l.exhausted = true
		fireExhausted = true
	}
	l.mu.Unlock()

	if fireWarning && l.callbacks.OnWarning != nil {
		l.callbacks.OnWarning(usage)
	}
	if fireExhausted && l.callbacks.OnExhausted != nil {
		l.callbacks.OnExhausted(usage)
	}
	return usage.Remaining, nil
}

// Remaining returns invested minus spent.
func (l *Ledger) Remaining() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.invested.Sub(l.spent).InexactFloat64()
}

// Invested returns the invested amount.
func (l *Ledger) Invested() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.invested.InexactFloat64()
}

// Spent returns the cumulative spend.
func (l *Ledger) Spent() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent.InexactFloat64()
}

// Usage returns a consistent snapshot of the ledger.
func (l *Ledger) Usage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usageLocked()
}

func (l *Ledger) usageLocked() Usage {
	return Usage{
		Invested:  l.invested.InexactFloat64(),
		Spent:     l.spent.InexactFloat64(),
		Remaining: l.invested.Sub(l.spent).InexactFloat64(),
		Charges:   l.charges,
	}
}
