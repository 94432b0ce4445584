package infer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValue(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"bool", true, TypeString},
		{"int", 42, TypeInteger},
		{"int64", int64(42), TypeInteger},
		{"whole float", 42.0, TypeInteger},
		{"fractional float", 42.5, TypeDecimal},
		{"time", time.Now(), TypeDatetime},
		{"numeric text int", "10", TypeInteger},
		{"numeric text decimal", "0.1", TypeDecimal},
		{"date text", "2022-01-01", TypeDatetime},
		{"timestamp text", "2022-01-01 13:45:00", TypeDatetime},
		{"rfc3339 text", "2022-01-01T13:45:00Z", TypeDatetime},
		{"plain text", "hello", TypeString},
		{"empty text", "", TypeString},
		{"bytes", []byte("3.14"), TypeDecimal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Value(tc.in))
		})
	}
}

func TestColumnWidestType(t *testing.T) {
	cases := []struct {
		name   string
		values []any
		want   string
	}{
		{"all integers", []any{1, 2, 3}, TypeInteger},
		{"integers and decimals", []any{1, 2.5}, TypeDecimal},
		{"any string wins", []any{1, 2, "x"}, TypeString},
		{"all dates", []any{"2022-01-01", "2022-02-01"}, TypeDatetime},
		{"numbers mixed with dates", []any{1, "2022-01-01"}, TypeString},
		{"decimals mixed with dates", []any{2.5, "2022-01-01"}, TypeString},
		{"nulls are skipped", []any{nil, 7, nil}, TypeInteger},
		{"all null", []any{nil, nil}, TypeString},
		{"empty", nil, TypeString},
		{"numeric text", []any{"10", "20"}, TypeInteger},
		{"numeric text with fraction", []any{"10", "0.5"}, TypeDecimal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Column(tc.values))
		})
	}
}
