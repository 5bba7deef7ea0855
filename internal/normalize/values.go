package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// maxSalary bounds parsed salary figures; anything larger is a malformed payload.
const maxSalary = 100_000_000

const salaryNumber = `(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`

// Range patterns capture (low, k, high, k); single patterns capture (value, k).
var salaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$\s*` + salaryNumber + `\s*(k)?\s*(?:-|–|to)\s*\$?\s*` + salaryNumber + `\s*(k)?`),
	regexp.MustCompile(`(?i)` + salaryNumber + `\s*(k)?\s*(?:-|–|to)\s*` + salaryNumber + `\s*(k)\b`),
	regexp.MustCompile(`(?i)\$\s*` + salaryNumber + `\s*(k)?`),
	regexp.MustCompile(`(?i)` + salaryNumber + `\s*(k)\b`),
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// salaryRange prefers numeric bounds and falls back to parsing a salary string.
func salaryRange(minRaw, maxRaw, text any) (*int, *int) {
	minValue, minOK := toAmount(minRaw)
	maxValue, maxOK := toAmount(maxRaw)

	if !minOK && !maxOK {
		if s, ok := text.(string); ok {
			return ParseSalary(s)
		}
		if v, ok := toAmount(text); ok {
			return &v, nil
		}
		return nil, nil
	}

	var minPtr, maxPtr *int
	if minOK {
		minPtr = &minValue
	}
	if maxOK {
		maxPtr = &maxValue
	}
	if minPtr != nil && maxPtr != nil && *minPtr > *maxPtr {
		minPtr, maxPtr = maxPtr, minPtr
	}
	return minPtr, maxPtr
}

// ParseSalary extracts a salary range from free text such as "$70,000 - $120,000", "70-120k" or "$80k".
func ParseSalary(text string) (*int, *int) {
	for i, re := range salaryPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if i < 2 {
			kShared := m[4] != ""
			low, ok := amount(m[1], m[2] != "" || kShared)
			if !ok {
				continue
			}
			high, ok := amount(m[3], m[4] != "")
			if !ok {
				continue
			}
			if low > high {
				low, high = high, low
			}
			return &low, &high
		}
		v, ok := amount(m[1], m[2] != "")
		if !ok {
			continue
		}
		return &v, nil
	}
	return nil, nil
}

func amount(digits string, thousands bool) (int, bool) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if thousands {
		f *= 1000
	}
	return toSalary(f)
}

// toAmount converts numeric-like values into a positive salary figure.
func toAmount(v any) (int, bool) {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0, false
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case float32:
		f = float64(val)
	case float64:
		f = val
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(val), "$"))
		thousands := strings.HasSuffix(strings.ToLower(s), "k")
		s = strings.TrimSuffix(strings.TrimSuffix(s, "k"), "K")
		return amount(strings.TrimSpace(s), thousands)
	default:
		return 0, false
	}
	return toSalary(f)
}

// toSalary rounds f to a whole amount. Non-positive, non-finite and implausibly large values are rejected.
func toSalary(f float64) (int, bool) {
	if math.IsNaN(f) || f <= 0 || f > maxSalary {
		return 0, false
	}
	return int(math.Round(f)), true
}

func parseTime(v any) *time.Time {
	var t time.Time
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		t = val
	case *time.Time:
		if val == nil {
			return nil
		}
		t = *val
	case int64:
		t = time.Unix(val, 0)
	case int:
		t = time.Unix(int64(val), 0)
	case float64:
		t = time.Unix(int64(val), 0)
	case json.Number:
		secs, err := val.Int64()
		if err != nil {
			return nil
		}
		t = time.Unix(secs, 0)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		parsed := false
		for _, layout := range timeLayouts {
			if candidate, err := time.Parse(layout, s); err == nil {
				t = candidate
				parsed = true
				break
			}
		}
		if !parsed {
			return nil
		}
	default:
		return nil
	}
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func cleanLine(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "li", "div":
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "li", "div":
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}
