// Package exchange converts amounts between currencies using stored rates
package exchange

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// Compile-time interface check
var _ interfaces.ExchangeConverter = (*Service)(nil)

// DefaultLookupTimeout bounds a single rate lookup when no option overrides it.
const DefaultLookupTimeout = 2 * time.Second

// Service implements ExchangeConverter. Every call reads rates from the
// store; nothing is cached.
type Service struct {
	rates         interfaces.ExchangeRateStore
	baseCurrency  string
	baseResolver  func(ctx context.Context) string
	lookupTimeout time.Duration
	logger        *common.Logger
	degraded      atomic.Int64
}

// Option configures the converter
type Option func(*Service)

// WithBaseCurrency sets the currency whose rate is implicitly 1 when the
// store holds no record for it.
func WithBaseCurrency(code string) Option {
	return func(s *Service) {
		s.baseCurrency = strings.ToUpper(code)
	}
}

// WithBaseCurrencyResolver resolves the implicit-rate currency on every
// lookup. It takes precedence over WithBaseCurrency.
func WithBaseCurrencyResolver(resolve func(ctx context.Context) string) Option {
	return func(s *Service) {
		s.baseResolver = resolve
	}
}

// WithLookupTimeout bounds each rate lookup
func WithLookupTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lookupTimeout = d
		}
	}
}

// NewService creates a new exchange converter
func NewService(rates interfaces.ExchangeRateStore, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		rates:         rates,
		lookupTimeout: DefaultLookupTimeout,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exchange converts amount from one currency to another as
// amount * toRate / fromRate. Identical currencies return amount unchanged
// without a lookup. A missing or zero rate, a failed lookup or a lookup
// timeout yields zero; each such conversion is logged and counted. A
// cancelled ctx also yields zero but is not counted.
func (s *Service) Exchange(ctx context.Context, amount decimal.Decimal, from, to string) decimal.Decimal {
	if from == to {
		return amount
	}

	fromRate, ok := s.lookup(ctx, from, to, from)
	if !ok {
		return decimal.Zero
	}
	toRate, ok := s.lookup(ctx, from, to, to)
	if !ok {
		return decimal.Zero
	}

	return amount.Mul(toRate).Div(fromRate)
}

// Degraded returns how many conversions fell back to zero since creation.
func (s *Service) Degraded() int64 {
	return s.degraded.Load()
}

// lookup fetches the rate of currency, reporting false when the conversion
// from -> to has to degrade.
func (s *Service) lookup(ctx context.Context, from, to, currency string) (decimal.Decimal, bool) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	type result struct {
		rate *models.ExchangeRate
		err  error
	}
	done := make(chan result, 1)
	go func() {
		rate, err := s.rates.FindExchangeRate(lookupCtx, currency)
		done <- result{rate: rate, err: err}
	}()

	var rate *models.ExchangeRate
	var err error
	select {
	case r := <-done:
		rate, err = r.rate, r.err
	case <-lookupCtx.Done():
		err = lookupCtx.Err()
	}
	if ctx.Err() != nil {
		// Caller gave up; not a data-quality problem.
		return decimal.Zero, false
	}
	if err != nil {
		s.degrade(from, to, currency, err.Error())
		return decimal.Zero, false
	}
	if rate == nil {
		if base := s.base(ctx); base != "" && strings.EqualFold(currency, base) {
			return decimal.NewFromInt(1), true
		}
		s.degrade(from, to, currency, "no rate stored")
		return decimal.Zero, false
	}
	if rate.Rate.IsZero() {
		s.degrade(from, to, currency, "rate is zero")
		return decimal.Zero, false
	}
	return rate.Rate, true
}

func (s *Service) base(ctx context.Context) string {
	if s.baseResolver != nil {
		return s.baseResolver(ctx)
	}
	return s.baseCurrency
}

func (s *Service) degrade(from, to, currency, reason string) {
	s.degraded.Add(1)
	s.logger.Warn().
		Str("from", from).
		Str("to", to).
		Str("currency", currency).
		Str("reason", reason).
		Msg("Currency conversion degraded to zero")
}
