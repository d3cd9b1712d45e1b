// Package client is an HTTP client for the barbershop scheduling API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"barbershop/internal/models"

	"github.com/redis/go-redis/v9"
)

// Error is a non-2xx response. Reason is set when a slot was rejected.
type Error struct {
	StatusCode int `json:"-"`
	Message    string `json:"error"`
	Reason     string `json:"reason"`
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("http %d: %s (%s)", e.StatusCode, e.Message, e.Reason)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is a 409 from the API.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

type Slots struct {
	BarberID    string   `json:"barberId"`
	Date        string   `json:"date"`
	SlotMinutes int      `json:"slotMinutes"`
	Slots       []string `json:"slots"`
}

type CheckResult struct {
	Available bool                `json:"available"`
	Reason    string              `json:"reason"`
	Message   string              `json:"message"`
	Conflict  *models.Appointment `json:"conflict,omitempty"`
}

type BookRequest struct {
	BarberID    string `json:"barberId"`
	TreatmentID string `json:"treatmentId,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Duration    int    `json:"duration,omitempty"`
	UserID      string `json:"userId,omitempty"`
	Manual      bool   `json:"manual,omitempty"`
	ClientName  string `json:"clientName,omitempty"`
	ClientPhone string `json:"clientPhone,omitempty"`
}

type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// New constructs a client with baseURL, API key and extra header.
func New(baseURL, apiKey, apiExtra string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache caches slot lists in Redis for ttl. Bookings made through this client
// drop the cached day.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func slotsKey(barberID, date string) string {
	return fmt.Sprintf("client:slots:%s:%s", barberID, date)
}

// Slots lists the free start times of a barber on date (YYYY-MM-DD).
func (c *Client) Slots(ctx context.Context, barberID, date string) (*Slots, error) {
	key := slotsKey(barberID, date)
	var resp Slots
	if c.readCache(ctx, key, &resp) {
		return &resp, nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/barbers/%s/slots?date=%s", c.baseURL, url.PathEscape(barberID), url.QueryEscape(date))
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, resp)
	return &resp, nil
}

// Check asks whether a start time is bookable. duration 0 means one slot.
func (c *Client) Check(ctx context.Context, barberID, date, clock string, duration int) (*CheckResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/barbers/%s/check", c.baseURL, url.PathEscape(barberID))
	body := map[string]any{"date": date, "time": clock, "duration": duration}
	var resp CheckResult
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Book(ctx context.Context, req BookRequest) (*models.Appointment, error) {
	var appt models.Appointment
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/v1/appointments", req, &appt); err != nil {
		return nil, err
	}
	c.dropCache(ctx, slotsKey(req.BarberID, req.Date))
	return &appt, nil
}

// Cancel cancels an appointment on behalf of by (customer, barber or admin).
func (c *Client) Cancel(ctx context.Context, appointmentID, by, userID string) (*models.Appointment, error) {
	endpoint := fmt.Sprintf("%s/api/v1/appointments/%s/cancel", c.baseURL, url.PathEscape(appointmentID))
	body := map[string]string{"by": by, "userId": userID}
	var appt models.Appointment
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, &appt); err != nil {
		return nil, err
	}
	c.dropCache(ctx, slotsKey(appt.BarberID, models.DayKey(appt.Date)))
	return &appt, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) dropCache(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, key).Err()
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
}
