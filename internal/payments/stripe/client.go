package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client — минимальный клиент Stripe API (Checkout Sessions и Refunds).
// Stripe принимает form-encoded тела и отвечает JSON-ом.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient создаёт экземпляр клиента.
func NewClient(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckoutSession — сессия Stripe Checkout.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// Refund — возврат платежа.
type Refund struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PaymentIntent string `json:"payment_intent"`
	AmountCents   int64  `json:"amount"`
}

// LineItem — позиция чека Checkout-сессии.
type LineItem struct {
	Name        string
	AmountCents int64
}

// CheckoutParams описывает платёж, на который создаётся сессия.
// Если Items пуст, сессия строится на единственную позицию из
// ProductName/AmountCents.
type CheckoutParams struct {
	AmountCents int64
	Currency    string
	ProductName string
	Items       []LineItem
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// LineItems возвращает позиции чека сессии.
func (p CheckoutParams) LineItems() []LineItem {
	if len(p.Items) > 0 {
		return p.Items
	}
	return []LineItem{{Name: p.ProductName, AmountCents: p.AmountCents}}
}

// Total возвращает сумму сессии по позициям.
func (p CheckoutParams) Total() int64 {
	var total int64
	for _, item := range p.LineItems() {
		total += item.AmountCents
	}
	return total
}

// CreateCheckoutSession создаёт Checkout-сессию.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	for i, item := range p.LineItems() {
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		form.Set(prefix+"[quantity]", "1")
		form.Set(prefix+"[price_data][currency]", p.Currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.AmountCents, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
	}
	for k, v := range p.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetCheckoutSession возвращает сессию по идентификатору.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateRefund создаёт полный возврат по payment intent.
func (c *Client) CreateRefund(ctx context.Context, paymentIntentID string) (*Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)

	var refund Refund
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", form, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

// do выполняет запрос к Stripe и декодирует ответ в out.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	if c.secretKey == "" {
		return fmt.Errorf("stripe: secret key не задан")
	}

	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorBody struct {
			Error struct {
				Type    string `json:"type"`
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errorBody)
		return fmt.Errorf("stripe: код ответа %d: %s %s", resp.StatusCode, errorBody.Error.Code, errorBody.Error.Message)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// Paid сообщает, оплачена ли сессия.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid"
}
