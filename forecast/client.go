package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"unit-pricing/models"
	"unit-pricing/services"
	"unit-pricing/utils"
)

// ErrEmptySeries is returned when a series has no observations to fit.
var ErrEmptySeries = errors.New("forecast: empty series")

// Observation is one point of the reservations history sent to the model.
type Observation struct {
	DS string  `json:"ds"`
	Y  float64 `json:"y"`
}

// Request is the body of POST /forecast.
type Request struct {
	Project  string        `json:"project"`
	Typology string        `json:"typology"`
	Periods  int           `json:"periods"`
	Series   []Observation `json:"series"`
}

type pointDTO struct {
	DS    string  `json:"ds"`
	Yhat  float64 `json:"yhat"`
	Lower float64 `json:"yhat_lower"`
	Upper float64 `json:"yhat_upper"`
}

type response struct {
	Forecast []pointDTO `json:"forecast"`
}

// Client calls the external forecasting service.
type Client struct {
	baseURL string
	http    *http.Client
	retry   *utils.RetryConfig
}

// NewClient builds a client with a request timeout. retry may be nil for
// a single attempt.
func NewClient(baseURL string, timeout time.Duration, retry *utils.RetryConfig) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		retry:   retry,
	}
}

// Forecast sends a reservations series and returns the fitted history plus
// periods future days.
func (c *Client) Forecast(ctx context.Context, key services.SeriesKey, series []models.Reservation, periods int) ([]models.ForecastPoint, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}

	req := Request{
		Project:  key.Project,
		Typology: key.Typology,
		Periods:  periods,
		Series:   make([]Observation, len(series)),
	}
	for i, r := range series {
		req.Series[i] = Observation{DS: r.Date.Format(time.DateOnly), Y: r.Count}
	}

	var resp response
	op := fmt.Sprintf("forecast %s / %s", key.Project, key.Typology)
	if err := c.retry.Do(ctx, op, func() error {
		return c.postJSON(ctx, "/forecast", req, &resp)
	}); err != nil {
		return nil, err
	}

	points := make([]models.ForecastPoint, 0, len(resp.Forecast))
	for _, p := range resp.Forecast {
		ds, ok := utils.ParseDate(p.DS)
		if !ok {
			return nil, fmt.Errorf("forecast: bad date %q in response", p.DS)
		}
		points = append(points, models.ForecastPoint{Date: ds, Yhat: p.Yhat, Lower: p.Lower, Upper: p.Upper})
	}
	return points, nil
}

// postJSON posts payload to path under baseURL and decodes JSON into dest.
func (c *Client) postJSON(ctx context.Context, path string, payload, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("post %s: decode response: %w", path, err)
	}
	return nil
}
