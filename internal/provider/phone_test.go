package provider

import (
	"errors"
	"testing"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
)

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		raw         string
		countryCode string
		want        string
		wantErr     bool
	}{
		{name: "national number gets default country code", raw: "9876543210", want: "+919876543210"},
		{name: "separators stripped", raw: "98765-43210", want: "+919876543210"},
		{name: "parentheses and spaces", raw: "(987) 654 3210", want: "+919876543210"},
		{name: "trunk zero dropped", raw: "09876543210", want: "+919876543210"},
		{name: "double zero prefix", raw: "00447911123456", want: "+447911123456"},
		{name: "already international", raw: "+44 7911 123456", want: "+447911123456"},
		{name: "country code without plus", raw: "919876543210", want: "+919876543210"},
		{name: "custom country code", raw: "5551112233", countryCode: "+1", want: "+15551112233"},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "letters", raw: "98765abc10", wantErr: true},
		{name: "too short", raw: "+12345", wantErr: true},
		{name: "too long", raw: "+1234567890123456", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizePhone(tc.raw, tc.countryCode)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("NormalizePhone() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePhone() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("NormalizePhone() = %q, want %q", got, tc.want)
			}
		})
	}
}
