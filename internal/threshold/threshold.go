// Package threshold parses and evaluates pass/fail assertions over a load
// run, e.g. "p95<800ms" or "error_rate<0.01".
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/clientmetrics"
)

// Threshold is one performance assertion.
type Threshold struct {
	Metric   string  // p50, p90, p95, p99, avg, min, max, error_rate, rps, total, failures
	Operator string  // <, <=, >, >=, ==
	Value    float64 // latency metrics are normalized to milliseconds
	Raw      string  // original string for display
}

// Result is the outcome of evaluating one threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

var latencyMetrics = map[string]bool{
	"p50": true, "p90": true, "p95": true, "p99": true,
	"avg": true, "mean": true, "min": true, "max": true,
}

var countMetrics = map[string]bool{
	"error_rate": true, "rps": true, "total": true, "failures": true,
}

var thresholdPattern = regexp.MustCompile(`^([a-z0-9_]+)\s*([<>=!]+)\s*([0-9.]+[a-zµ]*)$`)

// Parse parses one threshold expression. Latency metrics accept a duration
// suffix ("800ms", "1.2s"); a bare number means milliseconds. Count metrics
// take plain numbers.
func Parse(s string) (Threshold, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if trimmed == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(trimmed)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format %q (expected e.g. 'p95<800ms' or 'error_rate<0.01')", s)
	}

	metric := matches[1]
	operator := matches[2]
	valueStr := matches[3]

	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator %q (supported: <, <=, >, >=, ==)", operator)
	}

	var value float64
	switch {
	case latencyMetrics[metric]:
		ms, err := parseLatencyValue(valueStr)
		if err != nil {
			return Threshold{}, fmt.Errorf("invalid value %q for %s: %w", valueStr, metric, err)
		}
		value = ms
	case countMetrics[metric]:
		v, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return Threshold{}, fmt.Errorf("invalid value %q for %s: %w", valueStr, metric, err)
		}
		value = v
	default:
		return Threshold{}, fmt.Errorf("unsupported metric %q (supported: p50, p90, p95, p99, avg, min, max, error_rate, rps, total, failures)", metric)
	}

	return Threshold{
		Metric:   metric,
		Operator: operator,
		Value:    value,
		Raw:      strings.TrimSpace(s),
	}, nil
}

// ParseMultiple parses a list of expressions, collecting every error.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errs []string
	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errs, "; "))
	}
	return result, nil
}

// parseLatencyValue converts a bare number (ms) or duration literal to
// milliseconds.
func parseLatencyValue(s string) (float64, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return float64(d) / float64(time.Millisecond), nil
}

// Evaluator evaluates thresholds against collected stats.
type Evaluator struct {
	thresholds []Threshold
}

func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate checks all thresholds against stats.
func (e *Evaluator) Evaluate(stats clientmetrics.Stats) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluateOne(t, stats))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluateOne(t Threshold, stats clientmetrics.Stats) Result {
	actual, err := extractMetricValue(t.Metric, stats)
	if err != nil {
		return Result{
			Threshold: t,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "PASS"
	if !pass {
		status = "FAIL"
	}

	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: actual %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value),
	}
}

func extractMetricValue(metric string, stats clientmetrics.Stats) (float64, error) {
	switch metric {
	case "p50":
		return stats.P50LatencyMs, nil
	case "p90":
		return stats.P90LatencyMs, nil
	case "p95":
		return stats.P95LatencyMs, nil
	case "p99":
		return stats.P99LatencyMs, nil
	case "avg", "mean":
		return stats.MeanLatencyMs, nil
	case "min":
		return stats.MinLatencyMs, nil
	case "max":
		return stats.MaxLatencyMs, nil
	case "error_rate":
		return stats.ErrorRate(), nil
	case "rps":
		return stats.RequestsPerSec, nil
	case "total":
		return float64(stats.Total), nil
	case "failures":
		return float64(stats.Failures), nil
	default:
		return 0, fmt.Errorf("unknown metric: %s", metric)
	}
}

func isValidOperator(operator string) bool {
	switch operator {
	case "<", "<=", ">", ">=", "==":
		return true
	}
	return false
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Float comparison with a small epsilon.
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
