package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "collapses runs of spaces and tabs",
			in:   "Beachgate   by \t Address",
			want: "Beachgate by Address",
		},
		{
			name: "joins hyphenated line wraps",
			in:   "water-\nfront apartments",
			want: "waterfront apartments",
		},
		{
			name: "strips soft hyphens",
			in:   "pent­house",
			want: "penthouse",
		},
		{
			name: "drops trailing whitespace before newlines",
			in:   "pool  \ngym",
			want: "pool\ngym",
		},
		{
			name: "trims surrounding whitespace",
			in:   "  3 bedroom units \n",
			want: "3 bedroom units",
		},
		{
			name: "empty input stays empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}
