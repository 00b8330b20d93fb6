package mexc

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"spot-trader/internal/logger"
	"spot-trader/internal/types"
)

// sign appends timestamp/recvWindow and an HMAC-SHA256 signature over the
// querystring, the way the exchange expects for signed endpoints.
func (c *Client) sign(params url.Values) (string, error) {
	if c.key == "" || c.secret == "" {
		return "", ErrMissingCredentials
	}
	if params.Get("timestamp") == "" {
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	}
	if params.Get("recvWindow") == "" {
		params.Set("recvWindow", strconv.FormatInt(c.recvWindow, 10))
	}
	qs := params.Encode()
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(qs))
	return qs + "&signature=" + hex.EncodeToString(mac.Sum(nil)), nil
}

func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	signed, err := c.sign(params)
	if err != nil {
		return nil, err
	}

	var req *http.Request
	switch method {
	case http.MethodPost:
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(signed))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	default:
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+signed, nil)
		if err != nil {
			return nil, err
		}
	}
	req.Header.Set("X-MEXC-APIKEY", c.key)
	return c.do(req)
}

// PlaceOrder submits a limit order. IsTest routes to the validate-only
// endpoint, which checks filters and balances but never fills.
func (c *Client) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	path := "/api/v3/order"
	if req.IsTest {
		path = "/api/v3/order/test"
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", req.Type)
	params.Set("quantity", req.Qty.String())
	if req.Price.Sign() > 0 {
		params.Set("price", req.Price.String())
	}
	if req.TimeInForce != "" {
		params.Set("timeInForce", req.TimeInForce)
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	body, err := c.doSigned(ctx, http.MethodPost, path, params)
	if err != nil {
		return types.OrderResp{}, err
	}

	var resp orderResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return types.OrderResp{}, fmt.Errorf("parse order response: %w", err)
		}
	}
	out := resp.toResp()
	logger.Trade(ctx, req.Symbol, string(req.Side), req.Qty.String(), req.Price.String(), out.OrderID,
		"is_test", req.IsTest, "client_order_id", req.ClientOrderID)
	return out, nil
}

// OrderStatus queries a single order by its exchange-assigned id.
func (c *Client) OrderStatus(ctx context.Context, symbol, orderID string) (types.OrderResp, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	body, err := c.doSigned(ctx, http.MethodGet, "/api/v3/order", params)
	if err != nil {
		return types.OrderResp{}, err
	}
	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return types.OrderResp{}, fmt.Errorf("parse order status: %w", err)
	}
	return resp.toResp(), nil
}

// CancelOrder cancels an open order by id.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) (types.OrderResp, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	body, err := c.doSigned(ctx, http.MethodDelete, "/api/v3/order", params)
	if err != nil {
		return types.OrderResp{}, err
	}
	var resp orderResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return types.OrderResp{}, fmt.Errorf("parse cancel response: %w", err)
		}
	}
	return resp.toResp(), nil
}

// AccountBalances returns the free balance per asset.
func (c *Client) AccountBalances(ctx context.Context) ([]types.Balance, error) {
	body, err := c.doSigned(ctx, http.MethodGet, "/api/v3/account", url.Values{})
	if err != nil {
		return nil, err
	}
	var acct accountResponse
	if err := json.Unmarshal(body, &acct); err != nil {
		return nil, fmt.Errorf("parse account: %w", err)
	}
	out := make([]types.Balance, 0, len(acct.Balances))
	for _, b := range acct.Balances {
		out = append(out, types.Balance{Asset: b.Asset, Free: b.Free.Decimal})
	}
	return out, nil
}
