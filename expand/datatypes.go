package expand

import (
	"fmt"
	"strings"

	ff "github.com/fhirflat/fhirflat"
	"github.com/shopspring/decimal"
)

// asStrings normalizes a flat cell into a slice of strings. Numeric codes
// from raw sheets arrive as floats and collapse to their integer form.
func asStrings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, asStrings(item)...)
		}
		return out
	default:
		return []string{numericString(v)}
	}
}

// numericString renders a numeric cell the way codes are written: integral
// floats lose their fraction (278307001.0 -> "278307001").
func numericString(v any) string {
	switch n := v.(type) {
	case float64:
		d := decimal.NewFromFloat(n)
		if d.IsInteger() {
			return d.StringFixed(0)
		}
		return d.String()
	case float32:
		return numericString(float64(n))
	case int:
		return fmt.Sprintf("%d", n)
	case int64:
		return fmt.Sprintf("%d", n)
	case decimal.Decimal:
		return n.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// firstString unwraps single-element lists the flat form stores strings in.
func firstString(v any) string {
	s := asStrings(v)
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// buildCodeableConcept re-creates a codeableConcept from its flat columns.
//
// The flat form stores codes as "system|code" strings with display text in a
// parallel .text column. During ingestion codes may instead arrive as a
// separate .system plus bare .code pair, which is condensed first.
func buildCodeableConcept(group map[string]any) map[string]any {
	codes := asStrings(group["code"])

	if _, hasSystem := group["system"]; hasSystem {
		systems := asStrings(group["system"])
		condensed := make([]string, 0, len(codes))
		for i, c := range codes {
			if i < len(systems) && !strings.Contains(c, "|") {
				condensed = append(condensed, systems[i]+"|"+c)
			} else {
				condensed = append(condensed, c)
			}
		}
		codes = condensed
	}

	texts := asStrings(group["text"])

	if len(codes) == 0 {
		if len(texts) == 0 {
			return nil
		}
		return map[string]any{"text": texts[0]}
	}

	coding := make([]any, 0, len(codes))
	for i, c := range codes {
		entry := map[string]any{}
		if system, code, ok := SplitCode(c); ok {
			entry["system"] = system
			entry["code"] = code
		} else if c != "" {
			entry["code"] = c
		}
		if i < len(texts) {
			entry["display"] = texts[i]
		}
		coding = append(coding, entry)
	}

	return map[string]any{"coding": coding}
}

// SplitCode splits a "system|code" string.
func SplitCode(s string) (system, code string, ok bool) {
	i := strings.IndexByte(s, '|')
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// buildQuantity re-creates a Quantity from its flat columns, splitting
// condensed "system|code" unit codes back out.
func buildQuantity(group map[string]any) map[string]any {
	quant := make(map[string]any, len(group))

	for key, v := range group {
		switch key {
		case "code":
			code := firstString(v)
			if _, hasSystem := group["system"]; hasSystem {
				quant["code"] = code
				quant["system"] = firstString(group["system"])
			} else if system, bare, ok := SplitCode(code); ok {
				quant["system"] = system
				quant["code"] = bare
			} else {
				quant["code"] = code
			}
		case "system":
			// handled alongside code
		case "value":
			quant["value"] = quantityValue(v)
		default:
			quant[key] = v
		}
	}

	if len(quant) == 0 {
		return nil
	}
	return quant
}

// quantityValue keeps quantity values numeric without float drift.
func quantityValue(v any) any {
	switch n := v.(type) {
	case string:
		if d, err := decimal.NewFromString(n); err == nil {
			return d
		}
		return n
	case float64, float32, int, int64, decimal.Decimal:
		return n
	default:
		return v
	}
}

// buildPeriod re-creates a Period from its .start/.end columns.
func buildPeriod(group map[string]any) map[string]any {
	period := make(map[string]any, 2)
	if start, ok := group["start"]; ok && start != nil {
		period["start"] = start
	}
	if end, ok := group["end"]; ok && end != nil {
		period["end"] = end
	}
	if len(period) == 0 {
		return nil
	}
	return period
}

// buildRange re-creates a Range from low/high quantity columns.
func buildRange(group map[string]any) (any, []ff.Issue) {
	groups := GroupKeys(group)
	out := make(map[string]any, 2)
	for _, bound := range []string{"low", "high"} {
		keys, ok := groups[bound]
		if !ok {
			continue
		}
		sub := make(map[string]any, len(keys))
		for _, k := range keys {
			sub[k] = group[k]
		}
		if q := buildQuantity(StepDown(sub)); q != nil {
			out[bound] = q
		}
	}
	if len(out) == 0 {
		return nil, []ff.Issue{
			ff.Error(ff.IssueTypeValue).
				Diagnostics("range has neither low nor high bound").Build(),
		}
	}
	return out, nil
}
