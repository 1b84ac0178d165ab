package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *float64
	}{
		{name: "plain integer", in: "500000", want: ptr(500000.0)},
		{name: "thousands separators", in: "1,250,000", want: ptr(1250000.0)},
		{name: "decimal", in: "99.5", want: ptr(99.5)},
		{name: "surrounding whitespace", in: "  750000 ", want: ptr(750000.0)},
		{name: "blank", in: "", want: nil},
		{name: "whitespace only", in: "   ", want: nil},
		{name: "garbage", in: "TBD", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseNumber(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestParseDate(t *testing.T) {
	iso := parseDate("2024-06-15")
	require.NotNil(t, iso)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), *iso)

	dmy := parseDate("31/12/2024")
	require.NotNil(t, dmy)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), *dmy)

	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("next Tuesday"))
}

func TestLeadHeaderMapCoversSpreadsheetColumns(t *testing.T) {
	want := map[string]string{
		"Lead ID":     "crm_id",
		"Lead name":   "name",
		"Email":       "email",
		"Min. Budget": "budget_min",
		"Max Budget":  "budget_max",
		"Lead status": "status",
	}
	for header, column := range want {
		assert.Equal(t, column, leadHeaderMap[header], "header %q", header)
	}
	assert.Empty(t, leadHeaderMap["Unrelated column"], "unknown headers are ignored")
}

func ptr(f float64) *float64 { return &f }
