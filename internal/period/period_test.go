package period

import "testing"

func TestParse(t *testing.T) {
	cases := map[string]Period{
		"1Y":   OneYear,
		"3y":   ThreeYear,
		"5Yr":  FiveYear,
		" 7 ":  SevenYear,
		"10yr": TenYear,
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", in, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "2Y", "five", "-1", "5r", "5R", "10yy", "3ry"} {
		if _, err := Parse(bad); err == nil {
			t.Fatalf("Parse(%q) should fail", bad)
		}
	}
}

func TestColumnSuffixAndMultiplier(t *testing.T) {
	if FiveYear.ColumnSuffix() != "(5Yr)" {
		t.Fatalf("unexpected suffix %q", FiveYear.ColumnSuffix())
	}
	want := map[Period]float64{OneYear: 0.6, ThreeYear: 0.45, FiveYear: 0.35, SevenYear: 0.3, TenYear: 0.25}
	for p, m := range want {
		if p.VolatilityMultiplier() != m {
			t.Fatalf("%v multiplier = %v, want %v", p, p.VolatilityMultiplier(), m)
		}
	}
}

func TestTextRoundTrip(t *testing.T) {
	b, err := TenYear.MarshalText()
	if err != nil || string(b) != "10Y" {
		t.Fatalf("MarshalText = %q, %v", b, err)
	}
	var p Period
	if err := p.UnmarshalText([]byte("3Y")); err != nil || p != ThreeYear {
		t.Fatalf("UnmarshalText = %v, %v", p, err)
	}
}
