package cart

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Line is one distinct purchasable variant in the cart.
type Line struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image,omitempty"`
	Quantity int     `json:"quantity"`

	// Attributes holds descriptive fields (color, finish, ...) that are
	// passed through untouched.
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Attribute returns a string attribute, or "" when absent or not a string.
func (l Line) Attribute(key string) string {
	if v, ok := l.Attributes[key].(string); ok {
		return v
	}
	return ""
}

func (l Line) clone() Line {
	l.Attributes = cloneAttributes(l.Attributes)
	return l
}

func cloneAttributes(attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		return nil
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// UnmarshalJSON accepts both the explicit "attributes" object and the flat
// storefront shape where extra keys sit next to id/name/price. Numeric fields
// are decoded leniently: a quantity that is missing or not a number becomes 0.
func (l *Line) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return errors.Wrap(err, "decode cart line")
	}

	*l = Line{}
	for key, val := range raw {
		switch key {
		case "id":
			l.ID = stringValue(val)
		case "name":
			l.Name = stringValue(val)
		case "image":
			l.Image = stringValue(val)
		case "price":
			l.Price = floatValue(val)
		case "quantity":
			l.Quantity = intValue(val)
		case "attributes":
			var attrs map[string]interface{}
			if err := json.Unmarshal(val, &attrs); err != nil {
				return errors.Wrap(err, "decode cart line attributes")
			}
			for k, v := range attrs {
				l.setAttribute(k, v)
			}
		default:
			var v interface{}
			if err := json.Unmarshal(val, &v); err != nil {
				return errors.Wrapf(err, "decode cart line field %q", key)
			}
			l.setAttribute(key, v)
		}
	}
	return nil
}

func (l *Line) setAttribute(key string, v interface{}) {
	if l.Attributes == nil {
		l.Attributes = make(map[string]interface{})
	}
	l.Attributes[key] = v
}

func decodeAny(val json.RawMessage) interface{} {
	var v interface{}
	if err := json.Unmarshal(val, &v); err != nil {
		return nil
	}
	return v
}

func stringValue(val json.RawMessage) string {
	switch v := decodeAny(val).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func floatValue(val json.RawMessage) float64 {
	switch v := decodeAny(val).(type) {
	case float64:
		return finite(v)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return finite(f)
	}
	return 0
}

// finite maps NaN and ±Inf to 0.
func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func intValue(val json.RawMessage) int {
	switch v := decodeAny(val).(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int(v)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(v))
		return i
	}
	return 0
}
