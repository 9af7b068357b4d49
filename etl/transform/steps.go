package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/haoqt/mini-etl/etl/model"
)

// isoLayouts are the timestamp shapes NormalizeStep accepts, broader
// than strict RFC3339 since upstream sources commonly omit a UTC
// offset.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CleanStep drops absent or whitespace-only string fields, trimming
// the remaining string values. It fails if nothing survives.
type CleanStep struct{}

func (CleanStep) Process(record model.Record) (model.Record, error) {
	cleaned := make(model.Record, len(record))

	for k, v := range record {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			v = s
		}
		cleaned[k] = v
	}

	if len(cleaned) == 0 {
		return nil, fmt.Errorf("Empty record after cleaning")
	}

	return cleaned, nil
}

// NormalizeStep parses created_at as an ISO-8601 timestamp and coerces
// amount to a float, when present.
type NormalizeStep struct{}

func (NormalizeStep) Process(record model.Record) (model.Record, error) {
	normalized := record.Clone()

	if raw, ok := normalized["created_at"]; ok {
		if s, ok := raw.(string); ok {
			parsed, err := parseISOTimestamp(s)
			if err != nil {
				return nil, fmt.Errorf("invalid datetime: %s", s)
			}
			normalized["created_at"] = parsed
		}
	}

	if raw, ok := normalized["amount"]; ok {
		amount, err := toFloat64(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid amount: %v", raw)
		}
		normalized["amount"] = amount
	}

	return normalized, nil
}

func parseISOTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("unsupported amount type %T", v)
	}
}

// EnrichStep looks up country_code in a caller-supplied code->name
// mapping and sets country_name. Records without country_code pass
// through unchanged; an unknown code fails the record.
type EnrichStep struct {
	CountryMap map[string]string
}

func NewEnrichStep(countryMap map[string]string) EnrichStep {
	return EnrichStep{CountryMap: countryMap}
}

func (e EnrichStep) Process(record model.Record) (model.Record, error) {
	raw, ok := record["country_code"]
	if !ok {
		return record, nil
	}
	code, ok := raw.(string)
	if !ok || code == "" {
		return record, nil
	}

	name, found := e.CountryMap[code]
	if !found {
		return nil, fmt.Errorf("unknown country code: %s", code)
	}

	enriched := record.Clone()
	enriched["country_name"] = name
	return enriched, nil
}
