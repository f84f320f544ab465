package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSymbol is returned when a raw symbol cannot be canonicalized.
var ErrInvalidSymbol = errors.New("invalid symbol")

// Exchange prefixes used in canonical symbols.
const (
	ExchangeSH = "SH"
	ExchangeSZ = "SZ"
	ExchangeBJ = "BJ"
)

// Symbol is a canonical, exchange-qualified equity code such as "SH600519".
// Build one with Canonicalize; the zero value is not a valid symbol.
type Symbol string

// Canonicalize normalizes a raw code into its canonical form.
//
// Accepted inputs: "600519", "sh600519", "SH600519", "600519.SH".
// Bare 6-digit codes get an inferred exchange from their leading digit:
// 6/9/5 -> SH, 0/2/3/1 -> SZ, 4/8 -> BJ. Index codes collide with equity
// codes ("000001" is Ping An Bank on SZ, the composite index is SH000001),
// so indices must always be passed with an explicit prefix.
func Canonicalize(raw string) (Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSymbol)
	}

	var exchange, code string
	switch {
	case len(s) == 9 && s[6] == '.':
		code, exchange = s[:6], s[7:]
	case len(s) == 8:
		exchange, code = s[:2], s[2:]
	case len(s) == 6:
		code = s
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}

	if !isDigits(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	if exchange == "" {
		exchange = inferExchange(code)
	}
	switch exchange {
	case ExchangeSH, ExchangeSZ, ExchangeBJ:
	default:
		return "", fmt.Errorf("%w: unknown exchange in %q", ErrInvalidSymbol, raw)
	}
	return Symbol(exchange + code), nil
}

// MustCanonicalize is Canonicalize for constants known to be valid.
func MustCanonicalize(raw string) Symbol {
	s, err := Canonicalize(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func inferExchange(code string) string {
	switch code[0] {
	case '6', '9', '5':
		return ExchangeSH
	case '0', '2', '3', '1':
		return ExchangeSZ
	case '4', '8':
		return ExchangeBJ
	}
	return ""
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (s Symbol) String() string { return string(s) }

// Exchange returns the two-letter exchange prefix.
func (s Symbol) Exchange() string {
	if len(s) < 2 {
		return ""
	}
	return string(s[:2])
}

// Code returns the 6-digit code without exchange prefix.
func (s Symbol) Code() string {
	if len(s) < 2 {
		return ""
	}
	return string(s[2:])
}

// Lower returns the lowercase form used by Sina and Tencent ("sh600519").
func (s Symbol) Lower() string { return strings.ToLower(string(s)) }

// SecID returns the Eastmoney security id ("1.600519" for SH, "0.xxxxxx" otherwise).
func (s Symbol) SecID() string {
	market := "0"
	if s.Exchange() == ExchangeSH {
		market = "1"
	}
	return market + "." + s.Code()
}
