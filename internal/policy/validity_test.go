package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/JulianoCristian/iotedge/internal/models"
)

func withNow(t *testing.T, ts time.Time) {
	t.Helper()
	old := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = old })
}

func TestComputeValidity(t *testing.T) {
	ref := time.Date(2018, 6, 28, 16, 39, 57, 0, time.UTC)
	withNow(t, ref)

	tests := map[string]struct {
		expiration string
		max        int64
		want       int64
		wantErr    error
	}{
		"empty": {
			expiration: "",
			max:        7200,
			wantErr:    ErrEmptyArgument,
		},
		"whitespace": {
			expiration: "       ",
			max:        7200,
			wantErr:    ErrEmptyArgument,
		},
		"garbage": {
			expiration: "Umm.. No.. Just no..",
			max:        7200,
			wantErr:    ErrInvalidTimestamp,
		},
		"missing offset": {
			expiration: "2018-06-28T17:39:57",
			max:        7200,
			wantErr:    ErrInvalidTimestamp,
		},
		"one hour": {
			expiration: "2018-06-28T17:39:57Z",
			max:        7200,
			want:       3600,
		},
		"offset": {
			expiration: "2018-06-28T09:39:57-08:00",
			max:        7200,
			want:       3600,
		},
		"capped": {
			expiration: "2019-06-28T16:39:57Z",
			max:        7200,
			want:       7200,
		},
		"past": {
			expiration: "1999-06-28T16:39:57-08:00",
			max:        7200,
			want:       -599_587_200,
		},
		"half a second past": {
			expiration: "2018-06-28T16:39:56.5Z",
			max:        7200,
			want:       -1,
		},
		"one and a half seconds past": {
			expiration: "2018-06-28T16:39:55.5Z",
			max:        7200,
			want:       -2,
		},
		"now": {
			expiration: "2018-06-28T16:39:57Z",
			max:        7200,
			want:       0,
		},
		"half a second ahead": {
			expiration: "2018-06-28T16:39:57.5Z",
			max:        7200,
			want:       0,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ComputeValidity(tc.expiration, tc.max)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("got error %v, wanted %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %d, wanted %d", got, tc.want)
			}
		})
	}
}

func TestEnsureRange(t *testing.T) {
	tests := map[string]struct {
		value   int64
		wantErr bool
	}{
		"negative": {value: -1, wantErr: true},
		"zero":     {value: 0},
		"max":      {value: 7200},
		"above":    {value: 7201, wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := EnsureRange(tc.value, 0, 7200)
			if tc.wantErr {
				var rangeErr *RangeError
				if !errors.As(err, &rangeErr) {
					t.Fatalf("got %v, wanted a RangeError", err)
				}
				if rangeErr.Low != 0 || rangeErr.High != 7200 {
					t.Errorf("bounds [%d, %d), wanted [0, 7200)", rangeErr.Low, rangeErr.High)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.value {
				t.Errorf("got %d, wanted %d", got, tc.value)
			}
		})
	}
}

func TestRangeErrorMessage(t *testing.T) {
	err := &RangeError{Value: -5, Low: 0, High: 7200}
	if want := "argument -5 out of range [0, 7200)"; err.Error() != want {
		t.Errorf("got %q, wanted %q", err.Error(), want)
	}
}

func TestEnsureNotEmpty(t *testing.T) {
	for _, v := range []string{"", " ", "\t\n"} {
		if _, err := EnsureNotEmpty(v); !errors.Is(err, ErrEmptyArgument) {
			t.Errorf("EnsureNotEmpty(%q) = %v, wanted ErrEmptyArgument", v, err)
		}
	}
	if got, err := EnsureNotEmpty("marvin"); err != nil || got != "marvin" {
		t.Errorf("EnsureNotEmpty(marvin) = %q, %v", got, err)
	}
}

func TestLimitsMaxDuration(t *testing.T) {
	l := Limits{MaxServerValidity: 2 * time.Hour}
	if got := l.MaxDuration(models.CertificateTypeServer); got != 7200 {
		t.Errorf("got %d, wanted 7200", got)
	}
	if got := l.MaxDuration(models.CertificateType(42)); got != 0 {
		t.Errorf("got %d for unknown type, wanted 0", got)
	}
}
