package filters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"spot-trader/internal/interfaces"
	"spot-trader/internal/logger"
	"spot-trader/internal/quant"
	"spot-trader/internal/types"
)

// ErrUnknownSymbol means the exchange reports no metadata for the symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Service caches exchange metadata with a shared TTL and derives per-symbol
// trading filters from it. Derived filters are cached for the process
// lifetime: filters change far less often than prices, so staleness there
// is an accepted tradeoff.
type Service struct {
	exchange         interfaces.Exchange
	ttl              time.Duration
	minNotionalFloor decimal.Decimal

	mu       sync.RWMutex
	metaAt   time.Time
	meta     map[string]types.SymbolMeta
	bySymbol map[string]quant.Filters
	now      func() time.Time
}

func New(exchange interfaces.Exchange, ttl time.Duration, minNotionalFloor decimal.Decimal) *Service {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	if minNotionalFloor.Sign() <= 0 {
		minNotionalFloor = decimal.NewFromInt(5)
	}
	return &Service{
		exchange:         exchange,
		ttl:              ttl,
		minNotionalFloor: minNotionalFloor,
		meta:             map[string]types.SymbolMeta{},
		bySymbol:         map[string]quant.Filters{},
		now:              time.Now,
	}
}

// metadata returns the cached metadata entry for symbol, refreshing the
// whole venue snapshot once per TTL window to bound request volume.
func (s *Service) metadata(ctx context.Context, symbol string) (types.SymbolMeta, error) {
	s.mu.RLock()
	fresh := s.now().Sub(s.metaAt) < s.ttl
	m, ok := s.meta[symbol]
	s.mu.RUnlock()

	if fresh && ok {
		return m, nil
	}
	if !fresh {
		if err := s.refresh(ctx); err != nil {
			// A stale entry beats a hard failure for this tick.
			if ok {
				logger.Warn(ctx, "Metadata refresh failed, serving stale entry", "symbol", symbol, "error", err)
				return m, nil
			}
			return types.SymbolMeta{}, err
		}
	}

	s.mu.RLock()
	m, ok = s.meta[symbol]
	s.mu.RUnlock()
	if !ok {
		return types.SymbolMeta{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return m, nil
}

func (s *Service) refresh(ctx context.Context) error {
	metas, err := s.exchange.ExchangeInfo(ctx, nil)
	if err != nil {
		return err
	}
	next := make(map[string]types.SymbolMeta, len(metas))
	for _, m := range metas {
		next[m.Symbol] = m
	}
	s.mu.Lock()
	s.meta = next
	s.metaAt = s.now()
	s.mu.Unlock()
	logger.Debug(ctx, "Exchange metadata cache refreshed", "symbols", len(next))
	return nil
}

// Get returns the symbol's trading filters, deriving them from metadata on
// first use and caching the result indefinitely.
func (s *Service) Get(ctx context.Context, symbol string) (quant.Filters, error) {
	s.mu.RLock()
	f, ok := s.bySymbol[symbol]
	s.mu.RUnlock()
	if ok {
		return f, nil
	}

	m, err := s.metadata(ctx, symbol)
	if err != nil {
		return quant.Filters{}, err
	}
	f = s.derive(m)

	s.mu.Lock()
	s.bySymbol[symbol] = f
	s.mu.Unlock()

	logger.Debug(ctx, "Symbol filters derived",
		"symbol", symbol,
		"tick_size", f.TickSize.String(),
		"step_size", f.StepSize.String(),
		"min_qty", f.MinQty.String(),
		"min_notional", f.MinNotional.String(),
	)
	return f, nil
}

// Info returns the tradability slice of the symbol's metadata. Unlike Get,
// this follows the TTL so status flips are observed.
func (s *Service) Info(ctx context.Context, symbol string) (types.SymbolInfo, error) {
	m, err := s.metadata(ctx, symbol)
	if err != nil {
		return types.SymbolInfo{}, err
	}
	return m.SymbolInfo, nil
}

// derive extracts filters from the exchange's filter list, falling back to
// precision-based derivation when entries are absent. Filter type names
// vary across venues, hence the substring matching.
func (s *Service) derive(m types.SymbolMeta) quant.Filters {
	var f quant.Filters
	for _, e := range m.Filters {
		t := strings.ToUpper(e.Type)
		switch {
		case strings.Contains(t, "NOTIONAL"):
			if e.MinNotional.Sign() > 0 {
				f.MinNotional = e.MinNotional
			}
		case strings.Contains(t, "PRICE"):
			if e.TickSize.Sign() > 0 {
				f.TickSize = e.TickSize
			}
		case strings.Contains(t, "LOT") || strings.Contains(t, "SIZE"):
			if e.StepSize.Sign() > 0 {
				f.StepSize = e.StepSize
			}
			if e.MinQty.Sign() > 0 {
				f.MinQty = e.MinQty
			}
		}
	}

	if f.StepSize.Sign() <= 0 {
		if m.BaseSizePrecision.Sign() > 0 {
			f.StepSize = m.BaseSizePrecision
		} else {
			f.StepSize = pow10Neg(m.BaseAssetPrecision)
		}
	}
	if f.TickSize.Sign() <= 0 {
		p := m.QuotePrecision
		if m.QuoteAssetPrecision > p {
			p = m.QuoteAssetPrecision
		}
		f.TickSize = pow10Neg(p)
	}
	if f.MinQty.Sign() <= 0 {
		f.MinQty = f.StepSize
	}
	if f.MinNotional.Sign() <= 0 {
		f.MinNotional = s.minNotionalFloor
	}
	return f
}

// pow10Neg returns 10^-p, clamping nonsense precision to a sane default.
func pow10Neg(p int) decimal.Decimal {
	if p <= 0 || p > 18 {
		p = 8
	}
	return decimal.New(1, -int32(p))
}
