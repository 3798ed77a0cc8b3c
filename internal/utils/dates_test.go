package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		kind DateKind
		want string
	}{
		{"empty", "   ", DateEmpty, ""},
		{"present", "Present", DateSentinel, DateOngoing},
		{"current lower", "current", DateSentinel, DateOngoing},
		{"currently", "Currently", DateSentinel, DateOngoing},
		{"ongoing", "ONGOING", DateSentinel, DateOngoing},
		{"never expires", "Never expires", DateSentinel, DateNeverExpires},
		{"no expiration", "no expiration", DateSentinel, DateNeverExpires},
		{"iso", "2021-07-15", DateNative, "2021-07-15"},
		{"rfc3339", "2021-07-15T10:00:00Z", DateNative, "2021-07-15"},
		{"long form", "July 15, 2021", DateNative, "2021-07-15"},
		{"mm/yyyy", "03/2020", DateNative, "2020-03-01"},
		{"m/yyyy", "3/2020", DateNative, "2020-03-01"},
		{"yyyy-mm", "2020-11", DateNative, "2020-11-01"},
		{"bare year", "2019", DateNative, "2019-01-01"},
		{"month name", "March 2020", DateNative, "2020-03-01"},
		{"month abbrev", "Sep 2018", DateNative, "2018-09-01"},
		{"sept", "Sept. 2018", DateNative, "2018-09-01"},
		{"bad month", "13/2020", DateRaw, "13/2020"},
		{"season", "Summer 2020", DateRaw, "Summer 2020"},
		{"garbage", "sometime last year", DateRaw, "sometime last year"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizeDate(tt.in)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNormalizeDateIsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Present", "now", "never", "No Expiration", "2021-07-15", "July 15, 2021",
		"03/2020", "2020-11", "2019", "March 2020", "Summer 2020", "Q3 2022", "",
	}
	for _, in := range inputs {
		once := NormalizeDate(in).String()
		twice := NormalizeDate(once).String()
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestDateValueIsOngoing(t *testing.T) {
	t.Parallel()

	assert.True(t, NormalizeDate("today").IsOngoing())
	assert.False(t, NormalizeDate("never").IsOngoing())
	assert.False(t, NormalizeDate("2020").IsOngoing())
}
