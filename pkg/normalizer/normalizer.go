// Package normalizer turns free-text clinical values ("120 mmHg", "<5",
// "1,234", "N/A") into a float or an explicit absence marker. It never fails.
package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// absentTokens are compared against the raw text before trimming, case sensitive.
var absentTokens = map[string]struct{}{
	"N/A":     {},
	"NULL":    {},
	"Missing": {},
	"Unknown": {},
	"":        {},
}

type Options struct {
	// DecimalComma treats a lone comma (no period in the token) as the
	// decimal mark, so "1,5" becomes 1.5. When false, every comma is dropped
	// as a thousands separator and "1,5" becomes 15.
	DecimalComma bool
}

type Normalizer struct {
	opts Options
}

func New(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

var defaultNormalizer = New(Options{})

// Normalize runs the default (comma-stripping) normalizer.
func Normalize(raw interface{}) Value {
	return defaultNormalizer.Normalize(raw)
}

// NormalizeAsText renders the normalized value back to text; ok is false when absent.
func NormalizeAsText(raw interface{}) (string, bool) {
	v := Normalize(raw)
	if !v.Valid {
		return "", false
	}
	return v.String(), true
}

func (n *Normalizer) Options() Options {
	return n.opts
}

func (n *Normalizer) Normalize(raw interface{}) Value {
	text, ok := toText(raw)
	if !ok {
		return Absent
	}
	if _, sentinel := absentTokens[text]; sentinel {
		return Absent
	}

	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return Absent
	}

	token := n.stripSeparators(fields[0])
	if token != "" && strings.ContainsAny(token[:1], "><=") {
		token = token[1:]
	}
	return parse(token)
}

func (n *Normalizer) stripSeparators(token string) string {
	if n.opts.DecimalComma && strings.Count(token, ",") == 1 && !strings.Contains(token, ".") {
		return strings.Replace(token, ",", ".", 1)
	}

	token = strings.ReplaceAll(token, ",", "")
	token = strings.ReplaceAll(token, " ", "")
	// No comma survives the line above; the decimal-comma pass stays a separate step.
	return strings.ReplaceAll(token, ",", ".")
}

func parse(token string) Value {
	if token == "" || strings.ContainsAny(token, "xX") {
		return Absent
	}
	token, ok := stripDigitUnderscores(token)
	if !ok {
		return Absent
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Absent
	}
	return Of(f)
}

// stripDigitUnderscores drops underscores that sit between two digits
// ("1_000"); any other underscore makes the token unparseable.
func stripDigitUnderscores(token string) (string, bool) {
	if !strings.Contains(token, "_") {
		return token, true
	}
	var b strings.Builder
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c != '_' {
			b.WriteByte(c)
			continue
		}
		if i == 0 || i == len(token)-1 || !isDigit(token[i-1]) || !isDigit(token[i+1]) {
			return "", false
		}
	}
	return b.String(), true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func toText(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	case []byte:
		return string(v), true
	case Value:
		if !v.Valid {
			return "", false
		}
		return v.String(), true
	case *float64:
		if v == nil {
			return "", false
		}
		return strconv.FormatFloat(*v, 'f', -1, 64), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), true
	case json.Number:
		return v.String(), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}
