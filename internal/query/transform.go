package query

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/schemakit/schemakit/internal/schema"
)

// TransformRecord casts a fetched row's values to their declared field types
// in place: drivers hand back strings and raw bytes for most columns, and the
// API should emit typed JSON.
func TransformRecord(doc *schema.Schema, record map[string]interface{}) {
	for name, field := range doc.Fields {
		value, ok := record[name]
		if !ok || value == nil {
			continue
		}
		record[name] = transformValue(field, value)
	}
}

func transformValue(field *schema.Field, value interface{}) interface{} {
	switch field.Type.Traits().Cast {
	case schema.CastInteger:
		return toInt(value)
	case schema.CastFloat:
		return toFloat(value)
	case schema.CastBoolean:
		return toBool(value)
	case schema.CastJSON:
		return toJSON(value)
	case schema.CastDate:
		return toFormattedTime(value, field.DateFormat, "2006-01-02")
	case schema.CastDateTime:
		return toFormattedTime(value, field.DateFormat, time.RFC3339)
	default:
		return value
	}
}

func toInt(value interface{}) interface{} {
	switch v := value.(type) {
	case int64, int, int32:
		return v
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	}
	return value
}

func toFloat(value interface{}) interface{} {
	switch v := value.(type) {
	case float64, float32:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return value
}

func toBool(value interface{}) interface{} {
	switch v := value.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(v) {
		case "1", "t", "true", "yes":
			return true
		case "0", "f", "false", "no", "":
			return false
		}
	}
	return value
}

func toJSON(value interface{}) interface{} {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return value
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// Not valid JSON; hand the raw value back rather than dropping it.
		return string(raw)
	}
	return decoded
}

// commonTimeLayouts covers the formats database drivers commonly hand back
// for date and datetime columns.
var commonTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toFormattedTime(value interface{}, format, fallback string) interface{} {
	if format == "" {
		format = fallback
	}

	switch v := value.(type) {
	case time.Time:
		return v.Format(format)
	case string:
		for _, layout := range commonTimeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.Format(format)
			}
		}
		return v
	default:
		return value
	}
}
