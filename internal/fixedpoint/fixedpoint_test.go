package fixedpoint

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFromRaw_Scales(t *testing.T) {
	tests := []struct {
		raw   string
		scale Scale
		want  string
	}{
		{"1000000000000000000", Scale18, "1"},
		{"60000000000000000000000", Scale18, "60000"},
		{"25000000000000000", Scale18, "0.025"},
		{"10000000", Scale6, "10"},
		{"1", Scale6, "0.000001"},
		{"10000", Scale2, "100"},
		{"250", Scale2, "2.5"},
		{"-12499979000", Scale18, "-0.000000012499979"},
		{"0", Scale18, "0"},
	}
	for _, tt := range tests {
		got, err := FromRaw(tt.raw, tt.scale)
		if err != nil {
			t.Fatalf("FromRaw(%q, %d): unexpected error: %v", tt.raw, tt.scale, err)
		}
		want := decimal.RequireFromString(tt.want)
		if !got.Equal(want) {
			t.Errorf("FromRaw(%q, %d) = %s, want %s", tt.raw, tt.scale, got, want)
		}
	}
}

func TestFromRaw_Malformed(t *testing.T) {
	for _, raw := range []string{"", "abc", "1.5", "1e3x", "12_34"} {
		_, err := FromRaw(raw, Scale18)
		if err == nil {
			t.Errorf("FromRaw(%q) should fail", raw)
			continue
		}
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Errorf("FromRaw(%q): expected *FormatError, got %T", raw, err)
		}
	}
}

func TestRoundTrip_Exact(t *testing.T) {
	raws := []string{
		"0",
		"1",
		"999999",
		"1000000000000000000",
		"123456789012345678901234567890",
		"-42000000000000000000",
	}
	for _, raw := range raws {
		for _, scale := range []Scale{Scale18, Scale6, Scale2} {
			d, err := FromRaw(raw, scale)
			if err != nil {
				t.Fatalf("FromRaw(%q, %d): %v", raw, scale, err)
			}
			if back := ToRaw(d, scale); back != raw {
				t.Errorf("round trip at scale %d: %q -> %s -> %q", scale, raw, d, back)
			}
		}
	}
}

func TestToRaw_TruncatesTowardZero(t *testing.T) {
	// 0.0000019 USD has a sub-unit tail at 6 decimals; the contract
	// truncates rather than rounds.
	d := decimal.RequireFromString("0.0000019")
	if got := ToRaw(d, Scale6); got != "1" {
		t.Errorf("ToRaw(0.0000019, Scale6) = %s, want 1", got)
	}
	neg := decimal.RequireFromString("-0.0000019")
	if got := ToRaw(neg, Scale6); got != "-1" {
		t.Errorf("ToRaw(-0.0000019, Scale6) = %s, want -1", got)
	}
}
