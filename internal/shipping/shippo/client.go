package shippo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client — минимальный клиент Shippo API (shipments и transactions).
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient создаёт экземпляр клиента.
func NewClient(baseURL, apiToken string) *Client {
	if baseURL == "" {
		baseURL = "https://api.goshippo.com"
	}
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Address — адрес в формате Shippo.
type Address struct {
	Name    string `json:"name"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Parcel — посылка. Габариты в сантиметрах, вес в килограммах.
type Parcel struct {
	Length       string `json:"length"`
	Width        string `json:"width"`
	Height       string `json:"height"`
	DistanceUnit string `json:"distance_unit"`
	Weight       string `json:"weight"`
	MassUnit     string `json:"mass_unit"`
}

// DefaultParcel возвращает посылку стандартных габаритов с заданным весом.
func DefaultParcel(weightKg float64) Parcel {
	return Parcel{
		Length:       "30",
		Width:        "20",
		Height:       "10",
		DistanceUnit: "cm",
		Weight:       strconv.FormatFloat(weightKg, 'f', -1, 64),
		MassUnit:     "kg",
	}
}

// Rate — ставка доставки из ответа Shippo.
type Rate struct {
	ObjectID      string `json:"object_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Provider      string `json:"provider"`
	Servicelevel  struct {
		Name  string `json:"name"`
		Token string `json:"token"`
	} `json:"servicelevel"`
	EstimatedDays int `json:"estimated_days"`
}

// AmountCents переводит строковую сумму ставки в центы.
func (r *Rate) AmountCents() (int64, error) {
	amount, err := strconv.ParseFloat(r.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("shippo: некорректная сумма ставки %q: %w", r.Amount, err)
	}
	return int64(math.Round(amount * 100)), nil
}

// Shipment — созданное отправление со списком ставок.
type Shipment struct {
	ObjectID string `json:"object_id"`
	Status   string `json:"status"`
	Rates    []Rate `json:"rates"`
}

// Transaction — покупка лейбла по выбранной ставке.
type Transaction struct {
	ObjectID            string   `json:"object_id"`
	Status              string   `json:"status"`
	TrackingNumber      string   `json:"tracking_number"`
	TrackingURLProvider string   `json:"tracking_url_provider"`
	LabelURL            string   `json:"label_url"`
	Messages            []apiMsg `json:"messages"`
}

type apiMsg struct {
	Source string `json:"source"`
	Code   string `json:"code"`
	Text   string `json:"text"`
}

// CreateShipment создаёт отправление и возвращает доступные ставки.
func (c *Client) CreateShipment(ctx context.Context, from, to Address, parcel Parcel) (*Shipment, error) {
	payload := map[string]any{
		"address_from": from,
		"address_to":   to,
		"parcels":      []Parcel{parcel},
		"async":        false,
	}

	var shipment Shipment
	if err := c.post(ctx, "/shipments/", payload, &shipment); err != nil {
		return nil, err
	}
	if len(shipment.Rates) == 0 {
		return nil, fmt.Errorf("shippo: для отправления %s не вернулось ни одной ставки", shipment.ObjectID)
	}
	return &shipment, nil
}

// PurchaseLabel покупает лейбл по идентификатору ставки.
func (c *Client) PurchaseLabel(ctx context.Context, rateID string) (*Transaction, error) {
	payload := map[string]any{
		"rate":            rateID,
		"label_file_type": "PDF",
		"async":           false,
	}

	var tx Transaction
	if err := c.post(ctx, "/transactions/", payload, &tx); err != nil {
		return nil, err
	}
	if tx.Status != "SUCCESS" {
		return nil, fmt.Errorf("shippo: покупка лейбла завершилась статусом %s: %s", tx.Status, joinMessages(tx.Messages))
	}
	return &tx, nil
}

// post выполняет JSON-запрос к Shippo и декодирует ответ в out.
func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	if c.apiToken == "" {
		return fmt.Errorf("shippo: api token не задан")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "ShippoToken "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errorBody)
		return fmt.Errorf("shippo: код ответа %d: %v", resp.StatusCode, errorBody)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func joinMessages(msgs []apiMsg) string {
	if len(msgs) == 0 {
		return "без сообщений"
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "; ")
}
