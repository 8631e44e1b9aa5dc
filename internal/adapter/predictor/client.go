package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/river-wqi-etl/internal/domain"
	"github.com/couchcryptid/river-wqi-etl/internal/observability"
)

// Client implements domain.Predictor against the river status classifier's
// HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a classifier client. baseURL is the service root without
// the /predict path.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// Predict classifies one feature vector. The classifier reports confidence in
// percent; the returned prediction carries it as a fraction in [0, 1].
func (c *Client) Predict(ctx context.Context, features domain.PredictionFeatures) (domain.Prediction, error) {
	start := time.Now()
	p, err := c.doRequest(ctx, features)
	c.metrics.PredictorAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.PredictorRequests.WithLabelValues("error").Inc()
		return domain.Prediction{}, err
	}
	c.metrics.PredictorRequests.WithLabelValues("success").Inc()
	return p, nil
}

func (c *Client) doRequest(ctx context.Context, features domain.PredictionFeatures) (domain.Prediction, error) {
	body, err := json.Marshal(features)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("encode features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Prediction{}, fmt.Errorf("predictor API error: status %d: %s", resp.StatusCode, msg)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Prediction{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Prediction == "" {
		return domain.Prediction{}, errors.New("predictor API returned an empty prediction")
	}

	c.logger.Debug("river status predicted",
		"status", out.Prediction,
		"confidence", out.Confidence,
	)
	return domain.Prediction{
		Status:     out.Prediction,
		Confidence: out.Confidence / 100,
	}, nil
}

// Classifier API response.

type response struct {
	Prediction    string             `json:"prediction"`
	Confidence    float64            `json:"confidence"` // percent
	Probabilities map[string]float64 `json:"probabilities"`
}
