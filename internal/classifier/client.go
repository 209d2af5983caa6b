// Package classifier calls the external drawing-classification service.
package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sketchduel/backend/internal/config"
	"github.com/sketchduel/backend/internal/metrics"
	"github.com/sketchduel/backend/pkg/logger"
)

var (
	// ErrNotConfigured means no classifier URL was set
	ErrNotConfigured = errors.New("classifier not configured")
	// ErrUnavailable means the classifier failed or the breaker is open
	ErrUnavailable = errors.New("classifier unavailable")
)

// RejectedError is a 4xx answer from the classifier, usually a bad image
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("classifier rejected request with status %d: %s", e.StatusCode, e.Body)
}

// PredictRequest is the body sent to the classifier
type PredictRequest struct {
	ImageData string `json:"image_data" validate:"required"`
}

// Prediction is the classifier's answer
type Prediction struct {
	Prediction    string             `json:"prediction"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	ModelVersion  string             `json:"model_version,omitempty"`
}

// Client proxies prediction requests behind a circuit breaker
type Client struct {
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[*Prediction]
	metrics    *metrics.Metrics
}

// NewClient creates a classifier client
func NewClient(cfg config.ClassifierConfig, m *metrics.Metrics, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			var rejected *RejectedError
			return err == nil || errors.As(err, &rejected) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				logger.F("breaker", name),
				logger.F("from", from.String()),
				logger.F("to", to.String()))
		},
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cb:      gobreaker.NewCircuitBreaker[*Prediction](settings),
		metrics: m,
	}
}

// Enabled reports whether a classifier URL is configured
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Predict classifies a base64-encoded canvas image
func (c *Client) Predict(ctx context.Context, imageData string) (*Prediction, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	pred, err := c.cb.Execute(func() (*Prediction, error) {
		return c.predict(ctx, imageData)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return pred, err
}

func (c *Client) predict(ctx context.Context, imageData string) (*Prediction, error) {
	jsonData, err := json.Marshal(PredictRequest{ImageData: imageData})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/predict", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.metrics.ClassifierCall(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &RejectedError{StatusCode: resp.StatusCode, Body: string(body)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var pred Prediction
	if err := json.Unmarshal(body, &pred); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal response: %v", ErrUnavailable, err)
	}
	return &pred, nil
}
