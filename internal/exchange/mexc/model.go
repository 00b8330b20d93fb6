package mexc

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"spot-trader/internal/types"
)

// exDecimal tolerates empty strings and nulls where the exchange omits a
// numeric field, decoding them as zero instead of failing the payload.
type exDecimal struct {
	decimal.Decimal
}

func (d *exDecimal) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(strings.Trim(string(data), `"`))
	if s == "" || s == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	return d.Decimal.UnmarshalJSON(data)
}

// flexString decodes a JSON string or number as its textual form. The
// exchange reports symbol status as "1" but sibling venues use bare enums.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	*s = flexString(strings.Trim(strings.TrimSpace(string(data)), `"`))
	return nil
}

type exchangeInfoResponse struct {
	Symbols []symbolEntry `json:"symbols"`
}

type symbolEntry struct {
	Symbol               string        `json:"symbol"`
	Status               flexString    `json:"status"`
	IsSpotTradingAllowed bool          `json:"isSpotTradingAllowed"`
	BaseAsset            string        `json:"baseAsset"`
	QuoteAsset           string        `json:"quoteAsset"`
	BaseAssetPrecision   int           `json:"baseAssetPrecision"`
	QuotePrecision       int           `json:"quotePrecision"`
	QuoteAssetPrecision  int           `json:"quoteAssetPrecision"`
	BaseSizePrecision    exDecimal     `json:"baseSizePrecision"`
	Filters              []filterEntry `json:"filters"`
}

type filterEntry struct {
	FilterType  string    `json:"filterType"`
	TickSize    exDecimal `json:"tickSize,omitempty"`
	StepSize    exDecimal `json:"stepSize,omitempty"`
	MinQty      exDecimal `json:"minQty,omitempty"`
	MinNotional exDecimal `json:"minNotional,omitempty"`
}

func (s symbolEntry) toMeta() types.SymbolMeta {
	meta := types.SymbolMeta{
		SymbolInfo: types.SymbolInfo{
			Symbol:             s.Symbol,
			Status:             string(s.Status),
			SpotTradingAllowed: s.IsSpotTradingAllowed,
			BaseAsset:          s.BaseAsset,
			QuoteAsset:         s.QuoteAsset,
		},
		BaseAssetPrecision:  s.BaseAssetPrecision,
		QuotePrecision:      s.QuotePrecision,
		QuoteAssetPrecision: s.QuoteAssetPrecision,
		BaseSizePrecision:   s.BaseSizePrecision.Decimal,
	}
	for _, f := range s.Filters {
		meta.Filters = append(meta.Filters, types.SymbolFilter{
			Type:        f.FilterType,
			TickSize:    f.TickSize.Decimal,
			StepSize:    f.StepSize.Decimal,
			MinQty:      f.MinQty.Decimal,
			MinNotional: f.MinNotional.Decimal,
		})
	}
	return meta
}

type orderResponse struct {
	OrderID             flexString `json:"orderId"`
	Status              string     `json:"status"`
	ExecutedQty         exDecimal  `json:"executedQty"`
	CummulativeQuoteQty exDecimal  `json:"cummulativeQuoteQty"`
}

func (o orderResponse) toResp() types.OrderResp {
	status := types.OrderStatus(o.Status)
	if o.Status == "" {
		// The validate-only test endpoint returns an empty body.
		status = types.StatusNew
	}
	return types.OrderResp{
		OrderID:     string(o.OrderID),
		Status:      status,
		ExecutedQty: o.ExecutedQty.Decimal,
		CumQuoteQty: o.CummulativeQuoteQty.Decimal,
	}
}

type accountResponse struct {
	Balances []struct {
		Asset string    `json:"asset"`
		Free  exDecimal `json:"free"`
	} `json:"balances"`
}

// parseKlines decodes the exchange's positional kline rows:
// [openTime, open, high, low, close, volume, closeTime, quoteVolume].
func parseKlines(raw []byte) ([]types.Candle, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	out := make([]types.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		var c types.Candle
		if err := json.Unmarshal(row[0], &c.OpenTs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(row[6], &c.CloseTs); err != nil {
			return nil, err
		}
		fields := []*decimal.Decimal{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		for i, dst := range fields {
			var d exDecimal
			if err := json.Unmarshal(row[i+1], &d); err != nil {
				return nil, err
			}
			*dst = d.Decimal
		}
		out = append(out, c)
	}
	return out, nil
}
