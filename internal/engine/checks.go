package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quapdata/quap-validate/internal/template"
)

const (
	dateLayout         = "2006-01-02"
	timestampAltLayout = "2006-01-02 15:04:05"
)

// coerce checks that a non-null raw value is representable in the declared
// dtype. Logical typing happens here; adapters deliver text.
func coerce(d template.DType, raw string) error {
	v := strings.TrimSpace(raw)
	switch d {
	case template.DTypeInt64:
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("not an int64: %q", raw)
		}
	case template.DTypeFloat64:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("not a float64: %q", raw)
		}
	case template.DTypeBool:
		switch strings.ToLower(v) {
		case "true", "t", "1", "false", "f", "0":
		default:
			return fmt.Errorf("not a bool: %q", raw)
		}
	case template.DTypeDate:
		if _, err := time.Parse(dateLayout, v); err != nil {
			return fmt.Errorf("not a date: %q", raw)
		}
	case template.DTypeTimestamp:
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			if _, err2 := time.Parse(timestampAltLayout, v); err2 != nil {
				return fmt.Errorf("not a timestamp: %q", raw)
			}
		}
	case template.DTypeString, template.DTypeGeometry:
		// Any non-null value passes; geometry is a presence check only.
	default:
		return fmt.Errorf("unknown dtype %q", d)
	}
	return nil
}

// inRange checks the inclusive numeric bounds for a value already known to
// coerce to the column's dtype.
func inRange(r *template.Range, raw string) (bool, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return false, err
	}
	if r.Min != nil && f < *r.Min {
		return false, nil
	}
	if r.Max != nil && f > *r.Max {
		return false, nil
	}
	return true, nil
}
