package verification

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"collateral-evidence/internal/domain/loan"

	"github.com/go-playground/validator/v10"
)

var ErrMalformedVerdict = errors.New("malformed oracle response")

type rawVerdict struct {
	ProductName     string          `json:"productName"`
	ConfidenceScore *float64        `json:"confidenceScore" validate:"required,gte=0,lte=100"`
	Summary         *string         `json:"summary" validate:"required"`
	ExtractedAmount json.RawMessage `json:"extractedAmount"`
	AssetType       string          `json:"assetType"`
	IsHandwritten   bool            `json:"isHandwritten"`
	IsDuplicate     bool            `json:"isDuplicate"`
}

var validate = validator.New()

// ParseVerdict decodes the oracle's text into a Verdict, tolerating code-fence wrapping.
func ParseVerdict(raw string) (*loan.Verdict, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedVerdict)
	}
	var rv rawVerdict
	if err := json.Unmarshal([]byte(body), &rv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	if err := validate.Struct(rv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	return &loan.Verdict{
		ProductName:     strings.TrimSpace(rv.ProductName),
		ConfidenceScore: int(math.Round(*rv.ConfidenceScore)),
		Summary:         strings.TrimSpace(*rv.Summary),
		ExtractedAmount: amount(rv.ExtractedAmount),
		AssetType:       strings.TrimSpace(rv.AssetType),
		IsHandwritten:   rv.IsHandwritten,
		IsDuplicate:     rv.IsDuplicate,
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	// prose around the object
	if !strings.HasPrefix(s, "{") {
		start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}

// amount accepts a JSON number or a string such as "Rp 1.250.000" or "1,250,000.50".
func amount(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return parseAmountString(s)
}

func parseAmountString(s string) *float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return nil
	}
	lastDot, lastComma := strings.LastIndexByte(digits, '.'), strings.LastIndexByte(digits, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// whichever separator comes last is the decimal point
		if lastDot > lastComma {
			digits = strings.ReplaceAll(digits, ",", "")
		} else {
			digits = strings.ReplaceAll(digits, ".", "")
			digits = strings.Replace(digits, ",", ".", 1)
		}
	case strings.Count(digits, ".") > 1 || groupedThousands(digits, '.'):
		digits = strings.ReplaceAll(digits, ".", "")
	default:
		digits = strings.ReplaceAll(digits, ",", "")
	}
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return nil
	}
	return &f
}

// groupedThousands reports a single sep followed by exactly three digits, e.g. "250.000".
func groupedThousands(s string, sep byte) bool {
	i := strings.IndexByte(s, sep)
	return i > 0 && len(s)-i-1 == 3
}
