package metric

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NumericMetric scores 1 when the last number in the response is within
// Tolerance of the expected value, 0 otherwise. A zero Tolerance means
// near-exact comparison.
type NumericMetric struct {
	Tolerance float64
}

func (NumericMetric) Name() string { return "numeric" }

func (NumericMetric) EmptyValue() float64 { return 0 }

func (m NumericMetric) Score(response []byte, expected any) (float64, error) {
	expNum, err := expectedNumber(expected)
	if err != nil {
		return 0, err
	}

	raw, ok := lastNumberToken(string(response))
	if !ok {
		return 0, nil
	}
	got, ok := parseFloat(raw)
	if !ok {
		return 0, nil
	}

	tol := m.Tolerance
	if tol <= 0 {
		tol = 1e-9
	}
	if math.Abs(got-expNum) <= tol {
		return 1, nil
	}
	return 0, nil
}

func (NumericMetric) Format(value float64) string {
	return fmt.Sprintf("%.3f%% accuracy", value*100)
}

func expectedNumber(expected any) (float64, error) {
	switch v := expected.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if raw, ok := lastNumberToken(v); ok {
			if f, ok := parseFloat(raw); ok {
				return f, nil
			}
		}
		return 0, fmt.Errorf("metric: numeric: could not parse expected value %q", v)
	default:
		return 0, fmt.Errorf("metric: numeric: unsupported expected type %T", expected)
	}
}

func lastNumberToken(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	start := -1
	end := -1
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' || c == ',' {
			end = i + 1
			start = i
			for start > 0 {
				pc := s[start-1]
				if (pc >= '0' && pc <= '9') || pc == '.' || pc == ',' || pc == '-' {
					start--
					continue
				}
				break
			}
			break
		}
	}
	if start < 0 || end < 0 || start >= end {
		return "", false
	}
	raw := strings.TrimSpace(s[start:end])
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.Trim(raw, ".")
	if raw == "" || raw == "-" {
		return "", false
	}
	return raw, true
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
