package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
)

const (
	defaultTimeout             = 10 * time.Second
	requestBodyReadLimit int64 = 1024
)

var errAPIKeyRequired = errors.New("courier api key is required")

// Tracker is the carrier surface the delivery sync job consumes.
type Tracker interface {
	GetTracking(ctx context.Context, waybillID, carrierCode string) (*Tracking, error)
}

// Client calls the courier aggregator's shipping APIs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the courier client for the given endpoint and key.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		return nil, errors.New("courier base url is required")
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    trimmedURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return client, nil
}

// TrackingEvent is one entry in the carrier's status history.
type TrackingEvent struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracking is the normalized tracking state for one waybill.
type Tracking struct {
	Status  string          `json:"status"`
	History []TrackingEvent `json:"history"`
}

// LatestStatus returns the most recent status string: the newest history
// entry when present, otherwise the summary status.
func (t *Tracking) LatestStatus() string {
	if t == nil {
		return ""
	}
	latest := t.Status
	var latestAt time.Time
	for _, event := range t.History {
		if event.Status == "" {
			continue
		}
		if latestAt.IsZero() || event.UpdatedAt.After(latestAt) {
			latest = event.Status
			latestAt = event.UpdatedAt
		}
	}
	return latest
}

// GetTracking fetches the carrier's tracking state for a waybill.
func (c *Client) GetTracking(ctx context.Context, waybillID, carrierCode string) (*Tracking, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "courier client not configured")
	}
	if strings.TrimSpace(waybillID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "waybill id is required")
	}
	if strings.TrimSpace(carrierCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier code is required")
	}

	endpoint := fmt.Sprintf("%s/trackings/%s/couriers/%s",
		c.baseURL, url.PathEscape(waybillID), url.PathEscape(carrierCode))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build tracking request")
	}
	httpReq.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute tracking request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"tracking request failed")
	}

	var apiResp struct {
		Status  string `json:"status"`
		History []struct {
			Status    string `json:"status"`
			Note      string `json:"note"`
			UpdatedAt string `json:"updated_at"`
			CreatedAt string `json:"created_at"`
		} `json:"history"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode tracking response")
	}

	tracking := &Tracking{Status: apiResp.Status}
	for _, entry := range apiResp.History {
		status := entry.Status
		if status == "" {
			status = entry.Note
		}
		stamp := entry.UpdatedAt
		if stamp == "" {
			stamp = entry.CreatedAt
		}
		at, _ := time.Parse(time.RFC3339, stamp)
		tracking.History = append(tracking.History, TrackingEvent{
			Status:    status,
			UpdatedAt: at,
		})
	}
	return tracking, nil
}

// CreateOrderInput is the payload for registering a shipment with the
// carrier.
type CreateOrderInput struct {
	CarrierCode       string `json:"courier_company"`
	ReferenceID       string `json:"reference_id"`
	DestinationName   string `json:"destination_contact_name"`
	DestinationPhone  string `json:"destination_contact_phone"`
	DestinationAddr   string `json:"destination_address"`
	OriginName        string `json:"origin_contact_name"`
	OriginPhone       string `json:"origin_contact_phone"`
	OriginAddr        string `json:"origin_address"`
	DeliveryType      string `json:"delivery_type"`
	Note              string `json:"order_note,omitempty"`
}

// CreateOrderResult carries the identifiers the carrier assigned.
type CreateOrderResult struct {
	WaybillID  string
	TrackingID string
}

// CreateOrder registers a shipment and returns the carrier identifiers.
func (c *Client) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "courier client not configured")
	}
	if strings.TrimSpace(input.CarrierCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier code is required")
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal create order request")
	}

	endpoint := fmt.Sprintf("%s/orders", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build create order request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute create order request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"create order request failed")
	}

	var apiResp struct {
		Success bool `json:"success"`
		Courier struct {
			WaybillID  string `json:"waybill_id"`
			TrackingID string `json:"tracking_id"`
		} `json:"courier"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode create order response")
	}
	if !apiResp.Success {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier rejected the shipment order")
	}

	return &CreateOrderResult{
		WaybillID:  apiResp.Courier.WaybillID,
		TrackingID: apiResp.Courier.TrackingID,
	}, nil
}
