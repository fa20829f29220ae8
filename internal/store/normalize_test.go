package store

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestNormalizeValue_Numbers(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"small int", 42, float64(42)},
		{"int64 at float limit", int64(1 << 53), float64(1 << 53)},
		{"int64 past float limit", int64(9007199254740993), "9007199254740993"},
		{"negative int64 past float limit", int64(-9007199254740993), "-9007199254740993"},
		{"uint64 past float limit", uint64(18446744073709551615), "18446744073709551615"},
		{"json integer", json.Number("17"), float64(17)},
		{"json integer past float limit", json.Number("9007199254740993"), "9007199254740993"},
		{"json integer past int64", json.Number("123456789012345678901234567890"), "123456789012345678901234567890"},
		{"json decimal", json.Number("1.5"), 1.5},
		{"json exponent", json.Number("1e3"), float64(1000)},
		{"big int", huge, "123456789012345678901234567890"},
		{"pg numeric integer", pgtype.Numeric{Int: big.NewInt(9007199254740993), Valid: true}, "9007199254740993"},
		{"pg numeric scaled", pgtype.Numeric{Int: big.NewInt(125), Exp: -2, Valid: true}, 1.25},
		{"pg numeric null", pgtype.Numeric{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeValue(tt.in); got != tt.want {
				t.Errorf("NormalizeValue(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatIdentity_LargeIntegers(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{int64(9007199254740993), "9007199254740993"},
		{json.Number("9007199254740993"), "9007199254740993"},
		{float64(12), "12"},
		{"u-1", "u-1"},
	}
	for _, tt := range tests {
		got, ok := FormatIdentity(tt.in)
		if !ok || got != tt.want {
			t.Errorf("FormatIdentity(%#v) = %q, %v; want %q", tt.in, got, ok, tt.want)
		}
	}
	if _, ok := FormatIdentity(nil); ok {
		t.Error("nil identity should not format")
	}
}
