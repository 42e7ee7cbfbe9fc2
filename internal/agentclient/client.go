// Package agentclient implements the HTTP strategy port: it calls a
// remote agent's /v1/act endpoint once per bar, wrapped in a circuit
// breaker so a degraded agent degrades to the configured fallback
// action instead of blocking the run.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kairos-alloy/alloy/internal/kairoserr"
	"github.com/kairos-alloy/alloy/internal/strategy"
	"github.com/kairos-alloy/alloy/pkg/types"
)

// Circuit breaker tuning for the /v1/act endpoint. A single remote
// agent serves the whole run, so one breaker is enough.
const (
	minRequests     = 5
	failureRatio    = 0.6
	openTimeout     = 10 * time.Second
	halfOpenMaxReqs = 2
	countInterval   = 10 * time.Second
)

// Metrics are the Prometheus series emitted by the client, shared
// across Client instances within a process.
type Metrics struct {
	breakerState *prometheus.GaugeVec
	requests     *prometheus.CounterVec
	latencyMs    prometheus.Histogram
}

// NewMetrics registers the client's Prometheus series against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kairos_agent_breaker_state",
			Help: "Agent circuit breaker state (0=closed, 1=half_open, 2=open)",
		}, []string{"endpoint"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kairos_agent_requests_total",
			Help: "Total agent HTTP requests by endpoint and result",
		}, []string{"endpoint", "result"}),
		latencyMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kairos_agent_latency_ms",
			Help:    "Agent HTTP round-trip latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
}

func (m *Metrics) recordState(endpoint string, s gobreaker.State) {
	if m == nil {
		return
	}
	var v float64
	switch s {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	m.breakerState.WithLabelValues(endpoint).Set(v)
}

// actRequest is the wire body of /v1/act.
type actRequest struct {
	APIVersion     string           `json:"api_version"`
	FeatureVersion string           `json:"feature_version"`
	RunID          string           `json:"run_id"`
	Timestamp      int64            `json:"timestamp"`
	Symbol         string           `json:"symbol"`
	Timeframe      string           `json:"timeframe"`
	Observation    []float64        `json:"observation"`
	Portfolio      actPortfolioView `json:"portfolio_state"`
}

type actPortfolioView struct {
	Cash        string `json:"cash"`
	PositionQty string `json:"position_qty"`
	Equity      string `json:"equity"`
}

// actResponse is the wire body of /v1/act.
type actResponse struct {
	ActionType   string  `json:"action_type"`
	Size         float64 `json:"size"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
	ModelVersion string  `json:"model_version"`
}

// Client is the HTTP strategy-port adapter used when [agent] mode is
// "remote". It implements strategy.Strategy.
type Client struct {
	cfg       types.AgentSection
	runID     string
	symbol    string
	timeframe types.Timeframe
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	metrics   *Metrics
	log       *zap.Logger
	events    []strategy.Event
}

// New constructs an agent HTTP client wrapped in a circuit breaker.
func New(cfg types.AgentSection, runID, symbol string, timeframe types.Timeframe, metrics *Metrics, log *zap.Logger) *Client {
	c := &Client{
		cfg:       cfg,
		runID:     runID,
		symbol:    symbol,
		timeframe: timeframe,
		http:      &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		metrics:   metrics,
		log:       log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "agent.act",
		MaxRequests: halfOpenMaxReqs,
		Interval:    countInterval,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && ratio >= failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.metrics.recordState("act", to)
			if c.log != nil {
				c.log.Warn("agent circuit breaker state change", zap.String("breaker", name), zap.String("to", to.String()))
			}
		},
	})
	return c
}

func (c *Client) Name() string { return "remote_agent" }

// DrainEvents returns and clears the agent_call_attempted /
// agent_fallback_applied events accumulated since the last call,
// implementing strategy.EventSource.
func (c *Client) DrainEvents() []strategy.Event {
	events := c.events
	c.events = nil
	return events
}

// Decide calls the remote agent's /v1/act endpoint through the circuit
// breaker, retrying up to cfg.Retries times on transport/timeout
// errors. When the breaker is open, or all retries are exhausted, it
// returns the configured fallback action rather than erroring the run
// — unless FatalOnProtocol is set and the failure was a malformed
// response, in which case it returns a KindAgent error.
func (c *Client) Decide(ctx context.Context, bar types.Bar, obs types.Observation, pv types.PortfolioView) (types.Action, error) {
	c.events = nil
	req := actRequest{
		APIVersion:     c.cfg.APIVersion,
		FeatureVersion: c.cfg.FeatureVersion,
		RunID:          c.runID,
		Timestamp:      bar.TimestampUTC,
		Symbol:         c.symbol,
		Timeframe:      string(c.timeframe),
		Observation:    obs.Values,
		Portfolio: actPortfolioView{
			Cash:        pv.Cash.String(),
			PositionQty: pv.PositionQty.String(),
			Equity:      pv.Equity.String(),
		},
	}

	var lastErr error
	var protocolErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		start := time.Now()
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doAct(ctx, req)
		})
		elapsed := time.Since(start)
		c.events = append(c.events, strategy.Event{
			Kind:   strategy.EventAgentCallAttempted,
			Reason: fmt.Sprintf("attempt %d", attempt+1),
		})
		if c.metrics != nil {
			c.metrics.latencyMs.Observe(float64(elapsed.Milliseconds()))
		}

		if err == nil {
			resp := result.(actResponse)
			if c.metrics != nil {
				c.metrics.requests.WithLabelValues("act", "success").Inc()
			}
			action, perr := toAction(resp, elapsed)
			if perr != nil {
				protocolErr = perr
				lastErr = perr
				break
			}
			return action, nil
		}

		lastErr = err
		if c.metrics != nil {
			c.metrics.requests.WithLabelValues("act", "failure").Inc()
		}
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			break
		}
	}

	if protocolErr != nil && c.cfg.FatalOnProtocol {
		return types.Action{}, kairoserr.Agent("agentclient.Decide", protocolErr)
	}

	if c.log != nil {
		c.log.Warn("agent call failed, falling back", zap.Error(lastErr), zap.String("fallback", string(c.cfg.FallbackAction)))
	}
	fallbackReason := fmt.Sprintf("agent fallback after error: %v", lastErr)
	c.events = append(c.events, strategy.Event{Kind: strategy.EventAgentFallbackApplied, Reason: fallbackReason})
	return types.Action{
		Type:   c.cfg.FallbackAction,
		Reason: fallbackReason,
	}, nil
}

func (c *Client) doAct(ctx context.Context, req actRequest) (actResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return actResponse{}, fmt.Errorf("encode act request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/v1/act", bytes.NewReader(body))
	if err != nil {
		return actResponse{}, fmt.Errorf("build act request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return actResponse{}, fmt.Errorf("act request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return actResponse{}, fmt.Errorf("act request: unexpected status %d", resp.StatusCode)
	}

	var out actResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return actResponse{}, fmt.Errorf("decode act response: %w", err)
	}
	return out, nil
}

func toAction(resp actResponse, latency time.Duration) (types.Action, error) {
	var kind types.ActionType
	switch resp.ActionType {
	case string(types.ActionBuy), string(types.ActionSell), string(types.ActionHold):
		kind = types.ActionType(resp.ActionType)
	default:
		return types.Action{}, fmt.Errorf("unrecognized action_type %q in agent response", resp.ActionType)
	}
	return types.Action{
		Type:           kind,
		Size:           resp.Size,
		Confidence:     resp.Confidence,
		Reason:         resp.Reason,
		ModelVersion:   resp.ModelVersion,
		AgentLatencyMs: latency.Milliseconds(),
	}, nil
}
