// Package scoring turns raw tracking metrics into a focus score, either from
// the external ML service or from a local heuristic when that service fails.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hperssn/focusflow/internal/config"
	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/metrics"
)

const (
	SourceML       = "ml"
	SourceFallback = "fallback"

	maxResponseBytes = 64 * 1024
)

type Result struct {
	Score  float64
	Label  domain.Label
	Source string
}

// Gateway asks the ML service for a score and never fails: any error on that
// path is logged and answered by Fallback.
type Gateway struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewGateway(cfg config.ScoringConfig, httpClient *http.Client, logger *zap.Logger, m *metrics.Metrics) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}

	return &Gateway{
		endpoint:   strings.TrimRight(cfg.MLURL, "/") + "/predict",
		httpClient: httpClient,
		timeout:    cfg.Timeout,
		logger:     logger,
		metrics:    m,
	}
}

func (g *Gateway) Score(ctx context.Context, in domain.Metrics) Result {
	res, err := g.predict(ctx, in)
	if err != nil {
		g.logger.Warn("ml scoring failed, using fallback heuristic",
			zap.String("integration", metrics.IntegrationML),
			zap.String("endpoint", g.endpoint),
			zap.Error(err),
		)
		g.metrics.IntegrationFailures.WithLabelValues(metrics.IntegrationML).Inc()
		res = Fallback(in)
	}

	g.metrics.Scores.WithLabelValues(res.Source).Inc()
	g.metrics.FocusScore.Observe(res.Score)
	return res
}

type predictRequest struct {
	TypingSpeed float64 `json:"typing_speed"`
	IdleTime    float64 `json:"idle_time"`
	TabSwitches float64 `json:"tab_switches"`
}

func (g *Gateway) predict(ctx context.Context, in domain.Metrics) (Result, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	body, err := json.Marshal(predictRequest{
		TypingSpeed: in.TypingSpeed,
		IdleTime:    in.IdleTime,
		TabSwitches: in.TabSwitches,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("ml request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("ml service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return Normalize(data)
}
