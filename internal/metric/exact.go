package metric

import (
	"fmt"
	"strconv"
	"strings"
)

// ExactMetric scores 1 when the response matches the expected label
// after whitespace and case normalization, 0 otherwise.
type ExactMetric struct{}

func (ExactMetric) Name() string { return "exact" }

func (ExactMetric) EmptyValue() float64 { return 0 }

func (ExactMetric) Score(response []byte, expected any) (float64, error) {
	exp, err := expectedLabel(expected)
	if err != nil {
		return 0, err
	}

	got := normalizeLabel(string(response))
	if got == "" {
		return 0, nil
	}
	if got == normalizeLabel(exp) {
		return 1, nil
	}
	return 0, nil
}

func (ExactMetric) Format(value float64) string {
	return fmt.Sprintf("%.3f%% accuracy", value*100)
}

func expectedLabel(expected any) (string, error) {
	switch v := expected.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("metric: exact: empty expected label")
		}
		return v, nil
	case []byte:
		return string(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("metric: exact: unsupported expected type %T", expected)
	}
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
