package price

import (
	"strings"
	"unicode"
	"unicode/utf8"

	scanerr "sjsage522/pricewatch/pkg/errors"

	"github.com/shopspring/decimal"
)

// DefaultSymbols is the recognized currency set, longest tokens first so that
// "US$" wins over "$".
var DefaultSymbols = []string{
	"US$", "USD", "EUR", "GBP", "RON", "lei", "CHF", "kr",
	"€", "$", "£", "¥", "₩", "₹",
}

// MaxPlausible is the ceiling above which a parsed amount is not treated as a price.
var MaxPlausible = decimal.NewFromInt(999999)

// Parsed is a normalized price
type Parsed struct {
	Amount         decimal.Decimal `json:"amount"`
	CurrencySymbol string          `json:"currency_symbol,omitempty"`
	Raw            string          `json:"raw"`
}

// String renders the amount with its currency symbol
func (p Parsed) String() string {
	if p.CurrencySymbol == "" {
		return p.Amount.StringFixed(2)
	}
	return p.Amount.StringFixed(2) + " " + p.CurrencySymbol
}

// Parser converts price text into amounts
type Parser struct {
	Symbols []string
}

// NewParser creates a parser recognizing the given currency symbols.
// An empty list falls back to DefaultSymbols.
func NewParser(symbols []string) *Parser {
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	return &Parser{Symbols: symbols}
}

var defaultParser = NewParser(nil)

// Parse parses raw with the default currency set
func Parse(raw string) (Parsed, error) {
	return defaultParser.Parse(raw)
}

// Plausible reports whether a parsed price looks like a real shop price
func Plausible(p Parsed) bool {
	return !p.Amount.IsNegative() && p.Amount.LessThanOrEqual(MaxPlausible)
}

// Parse strips currency tokens and separators from raw and returns the amount.
// It never panics; every failure is a *errors.ScanError of type parsing.
func (p *Parser) Parse(raw string) (Parsed, error) {
	result := Parsed{Raw: raw}

	text := strings.TrimSpace(raw)
	if text == "" || !strings.ContainsFunc(text, isDigit) {
		return result, scanerr.NewParsing(scanerr.ReasonNoNumericContent, raw)
	}
	// a percentage is a discount badge, not a price
	if strings.Contains(text, "%") {
		return result, scanerr.NewParsing(scanerr.ReasonNoNumericContent, raw)
	}

	text, result.CurrencySymbol = p.stripSymbol(text)

	number, negative := extractNumber(text)
	if number == "" {
		return result, scanerr.NewParsing(scanerr.ReasonNoNumericContent, raw)
	}

	normalized, ok := normalizeSeparators(number)
	if !ok {
		return result, scanerr.NewParsing(scanerr.ReasonMalformed, raw)
	}

	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return result, scanerr.NewParsing(scanerr.ReasonMalformed, raw)
	}
	if negative && !amount.IsZero() {
		return result, scanerr.NewParsing(scanerr.ReasonNegative, raw)
	}

	result.Amount = amount
	return result, nil
}

// stripSymbol removes every recognized currency token and returns the first one found
func (p *Parser) stripSymbol(text string) (string, string) {
	found := ""
	foundAt := -1
	for _, sym := range p.Symbols {
		idx := indexToken(text, sym)
		if idx < 0 {
			continue
		}
		if foundAt < 0 || idx < foundAt {
			found, foundAt = sym, idx
		}
	}
	if found == "" {
		return text, ""
	}

	for _, sym := range p.Symbols {
		for idx := indexToken(text, sym); idx >= 0; idx = indexToken(text, sym) {
			text = text[:idx] + " " + text[idx+len(sym):]
		}
	}
	return text, found
}

// indexToken finds sym in s ignoring case. Alphabetic tokens such as "lei" or
// "RON" only match as whole words.
func indexToken(s, sym string) int {
	lowerS := strings.ToLower(s)
	lowerSym := strings.ToLower(sym)
	if len(lowerS) != len(s) {
		// case folding changed byte offsets; fall back to an exact match
		lowerS, lowerSym = s, sym
	}
	wordLike := strings.IndexFunc(sym, unicode.IsLetter) >= 0 && strings.IndexFunc(sym, isSymbolRune) < 0

	offset := 0
	for {
		idx := strings.Index(lowerS[offset:], lowerSym)
		if idx < 0 {
			return -1
		}
		idx += offset
		end := idx + len(lowerSym)
		if !wordLike || (!letterBefore(s, idx) && !letterAfter(s, end)) {
			return idx
		}
		offset = end
	}
}

func isSymbolRune(r rune) bool {
	return unicode.Is(unicode.Sc, r)
}

func letterBefore(s string, idx int) bool {
	if idx == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:idx])
	return unicode.IsLetter(r)
}

func letterAfter(s string, idx int) bool {
	if idx >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[idx:])
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isGroupSpace(r rune) bool {
	return r == ' ' || r == '\u00a0' || r == '\u202f' || r == '\''
}

// extractNumber returns the first digit run (with separators) and whether it
// was preceded by a minus sign.
func extractNumber(text string) (string, bool) {
	runes := []rune(text)
	start := -1
	for i, r := range runes {
		if isDigit(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}

	negative := false
	for j := start - 1; j >= 0; j-- {
		r := runes[j]
		if unicode.IsSpace(r) {
			continue
		}
		negative = r == '-' || r == '−' || r == '–'
		break
	}

	var b strings.Builder
	for i := start; i < len(runes); i++ {
		r := runes[i]
		switch {
		case isDigit(r):
			b.WriteRune(r)
		case r == '.' || r == ',':
			b.WriteRune(r)
		case isGroupSpace(r) && i > 0 && isDigit(runes[i-1]) && i+1 < len(runes) && isDigit(runes[i+1]):
			// "1 999,00" and "1'999.00" use spaces and apostrophes for grouping
		default:
			i = len(runes)
		}
	}

	return strings.TrimRight(b.String(), ".,"), negative
}

// normalizeSeparators rewrites number into a plain "1234.56" form.
//
// With both separators present the one closer to the end is the decimal point.
// With a single separator type it is a thousands separator when every group after
// it has exactly three digits, and a decimal point otherwise.
func normalizeSeparators(number string) (string, bool) {
	lastDot := strings.LastIndex(number, ".")
	lastComma := strings.LastIndex(number, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		decimalSep, thousandsSep := ".", ","
		if lastComma > lastDot {
			decimalSep, thousandsSep = ",", "."
		}
		if strings.Count(number, decimalSep) > 1 {
			return "", false
		}
		intPart, frac, _ := strings.Cut(number, decimalSep)
		if strings.Contains(frac, thousandsSep) || !validGroups(strings.Split(intPart, thousandsSep)) {
			return "", false
		}
		return strings.ReplaceAll(intPart, thousandsSep, "") + "." + frac, true

	case lastDot >= 0 || lastComma >= 0:
		sep := "."
		if lastComma >= 0 {
			sep = ","
		}
		groups := strings.Split(number, sep)
		if validGroups(groups) {
			return strings.Join(groups, ""), true
		}
		if len(groups) == 2 && groups[0] != "" {
			return groups[0] + "." + groups[1], true
		}
		return "", false

	default:
		return number, true
	}
}

// validGroups reports whether groups look like thousands grouping: a leading
// group of 1-3 digits followed by groups of exactly 3 digits.
func validGroups(groups []string) bool {
	if len(groups) < 2 {
		return len(groups) == 1 && groups[0] != ""
	}
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}
