package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_Forms(t *testing.T) {
	tests := []struct {
		in   string
		want Symbol
	}{
		{"600519", "SH600519"},
		{"sh600519", "SH600519"},
		{"SH600519", "SH600519"},
		{" 600519.sh ", "SH600519"},
		{"000858", "SZ000858"},
		{"SZ000858", "SZ000858"},
		{"300750", "SZ300750"},
		{"688981", "SH688981"},
		{"830799", "BJ830799"},
		{"sh000001", "SH000001"},
	}
	for _, tt := range tests {
		got, err := Canonicalize(tt.in)
		require.NoErrorf(t, err, "input %q", tt.in)
		assert.Equalf(t, tt.want, got, "input %q", tt.in)
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	for _, in := range []string{"600519", "sz000858", "430047", "SH000001", "601318.SH"} {
		once, err := Canonicalize(in)
		require.NoError(t, err)
		twice, err := Canonicalize(string(once))
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestCanonicalize_ExchangeInferenceBoundary(t *testing.T) {
	// Inference is defined for bare codes, so these collapse to one key.
	bare, err := Canonicalize("600519")
	require.NoError(t, err)
	prefixed, err := Canonicalize("sh600519")
	require.NoError(t, err)
	assert.Equal(t, bare, prefixed)

	// The composite index must be prefixed; a bare code infers the SZ equity.
	index, err := Canonicalize("SH000001")
	require.NoError(t, err)
	equity, err := Canonicalize("000001")
	require.NoError(t, err)
	assert.NotEqual(t, index, equity)
	assert.Equal(t, Symbol("SZ000001"), equity)
}

func TestCanonicalize_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "60051", "6005190", "HK600519", "sh60051x", "700700", "600519.HK"} {
		_, err := Canonicalize(in)
		require.Errorf(t, err, "input %q", in)
		assert.Truef(t, errors.Is(err, ErrInvalidSymbol), "input %q: %v", in, err)
	}
}

func TestSymbol_ProviderForms(t *testing.T) {
	sh := MustCanonicalize("600519")
	assert.Equal(t, "sh600519", sh.Lower())
	assert.Equal(t, "1.600519", sh.SecID())
	assert.Equal(t, "SH", sh.Exchange())
	assert.Equal(t, "600519", sh.Code())

	sz := MustCanonicalize("000858")
	assert.Equal(t, "0.000858", sz.SecID())
}
