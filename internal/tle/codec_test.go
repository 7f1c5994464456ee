package tle

import (
	"math"
	"strings"
	"testing"
)

// ISS element set used as the golden fixture throughout.
const (
	issLine0 = "0 ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   20053.24093319  .00001847  00000-0  41427-4 0  9993"
	issLine2 = "2 25544  51.6429 202.1571 0004852 303.4083 121.5105 15.49190851214046"
)

func TestDecodeISS(t *testing.T) {
	rec, err := Decode(issLine0, issLine1, issLine2)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if rec.Name != "ISS (ZARYA)" {
		t.Errorf("Name = %q, want %q (\"0 \" prefix must be stripped)", rec.Name, "ISS (ZARYA)")
	}
	if rec.SatNum != 25544 {
		t.Errorf("SatNum = %d, want 25544", rec.SatNum)
	}
	if rec.Classification != 'U' {
		t.Errorf("Classification = %c, want U", rec.Classification)
	}
	if rec.IntlDesig != "98067A" {
		t.Errorf("IntlDesig = %q, want %q", rec.IntlDesig, "98067A")
	}
	if rec.EpochYear != 20 {
		t.Errorf("EpochYear = %d, want 20", rec.EpochYear)
	}
	if math.Abs(rec.EpochDay-53.24093319) > 1e-8 {
		t.Errorf("EpochDay = %.8f, want 53.24093319", rec.EpochDay)
	}
	if math.Abs(rec.NDot-1.847e-5) > 1e-12 {
		t.Errorf("NDot = %g, want 1.847e-5", rec.NDot)
	}
	if rec.NDDot != 0 {
		t.Errorf("NDDot = %g, want 0", rec.NDDot)
	}
	if math.Abs(rec.Bstar-4.1427e-5) > 1e-12 {
		t.Errorf("Bstar = %g, want 4.1427e-5", rec.Bstar)
	}
	if rec.EphType != 0 || rec.ElNum != 999 {
		t.Errorf("EphType/ElNum = %d/%d, want 0/999", rec.EphType, rec.ElNum)
	}
	if math.Abs(rec.InclDeg-51.6429) > 1e-9 {
		t.Errorf("InclDeg = %.4f, want 51.6429", rec.InclDeg)
	}
	if math.Abs(rec.RAANDeg-202.1571) > 1e-9 {
		t.Errorf("RAANDeg = %.4f, want 202.1571", rec.RAANDeg)
	}
	if math.Abs(rec.Ecc-0.0004852) > 1e-10 {
		t.Errorf("Ecc = %.7f, want 0.0004852", rec.Ecc)
	}
	if math.Abs(rec.ArgpDeg-303.4083) > 1e-9 {
		t.Errorf("ArgpDeg = %.4f, want 303.4083", rec.ArgpDeg)
	}
	if math.Abs(rec.MeanAnomDeg-121.5105) > 1e-9 {
		t.Errorf("MeanAnomDeg = %.4f, want 121.5105", rec.MeanAnomDeg)
	}
	if math.Abs(rec.MeanMotion-15.49190851) > 1e-9 {
		t.Errorf("MeanMotion = %.8f, want 15.49190851", rec.MeanMotion)
	}
	if rec.RevNum != 21404 {
		t.Errorf("RevNum = %d, want 21404", rec.RevNum)
	}

	// Epoch day 53 of 2020 is February 22.
	if rec.Epoch.Year() != 2020 || rec.Epoch.Month() != 2 || rec.Epoch.Day() != 22 {
		t.Errorf("Epoch = %v, want 2020-02-22", rec.Epoch)
	}
}

func TestDecodeUnprefixedName(t *testing.T) {
	rec, err := Decode("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if rec.Name != "ISS (ZARYA)" {
		t.Errorf("Name = %q, want %q", rec.Name, "ISS (ZARYA)")
	}
}

func TestEncodeISS(t *testing.T) {
	rec, err := Decode(issLine0, issLine1, issLine2)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	line0, line1, line2 := Encode(rec)
	if line0 != "ISS (ZARYA)" {
		t.Errorf("line0 = %q", line0)
	}
	if line1 != issLine1 {
		t.Errorf("line1 mismatch:\n got %q\nwant %q", line1, issLine1)
	}
	if line2 != issLine2 {
		t.Errorf("line2 mismatch:\n got %q\nwant %q", line2, issLine2)
	}
	if len(line1) != 69 || len(line2) != 69 {
		t.Errorf("line lengths = %d/%d, want 69/69", len(line1), len(line2))
	}
}

func TestChecksum(t *testing.T) {
	// The worked checksum example: line1 minus its final digit sums to 3.
	if got := Checksum(issLine1[:68]); got != 3 {
		t.Errorf("Checksum(line1[:68]) = %d, want 3", got)
	}
	if got := Checksum(issLine2[:68]); got != 6 {
		t.Errorf("Checksum(line2[:68]) = %d, want 6", got)
	}
	// Each '-' counts as 1.
	if got := Checksum("---"); got != 3 {
		t.Errorf("Checksum(\"---\") = %d, want 3", got)
	}
}

func TestDecodeNoChecksumValidation(t *testing.T) {
	// Decode intentionally accepts a wrong checksum digit; integrity
	// checking is the caller's explicit step.
	bad := issLine1[:68] + "0"
	if _, err := Decode(issLine0, bad, issLine2); err != nil {
		t.Errorf("Decode rejected a line with a wrong checksum: %v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		line1 string
		line2 string
	}{
		{"short line1", issLine1[:40], issLine2},
		{"short line2", issLine1, issLine2[:50]},
		{"garbage satnum", "1 2X544U 98067A   20053.24093319  .00001847  00000-0  41427-4 0  9993", issLine2},
		{"garbage epoch", "1 25544U 98067A   20z53.24093319  .00001847  00000-0  41427-4 0  9993", issLine2},
		{"garbage mean motion", issLine1, "2 25544  51.6429 202.1571 0004852 303.4083 121.5105 1x.49190851214046"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(issLine0, tt.line1, tt.line2)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), "malformed element set") {
				t.Errorf("error %v does not wrap ErrFormat", err)
			}
		})
	}
}

func TestCompressRoundTrip(t *testing.T) {
	// Deterministic sweep of [1e-8, 1e-2]; mantissa rounding to five
	// significant digits bounds the relative error at 5e-5.
	for i := 0; i < 600; i++ {
		x := math.Pow(10, -8+6*float64(i)/600) * (1 + 0.37*math.Mod(float64(i), 7)/7)
		got, err := decompress(compress(x))
		if err != nil {
			t.Fatalf("decompress(compress(%g)): %v", x, err)
		}
		if rel := math.Abs(got-x) / x; rel > 1e-4 {
			t.Fatalf("compress round trip of %g = %g, relative error %g", x, got, rel)
		}
	}
}

func TestCompressCases(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, " 00000-0"},
		{4.1427e-5, " 41427-4"},
		{1.847e-5, " 18470-4"},
		{1e-4, " 10000-3"},
		{-0.11, "-11000+0"},
		{9.999996e-5, " 10000-3"}, // mantissa rounding crosses a decade
	}
	for _, tt := range tests {
		if got := compress(tt.v); got != tt.want {
			t.Errorf("compress(%g) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestDecompressBlanksAreZero(t *testing.T) {
	got, err := decompress("        ")
	if err != nil || got != 0 {
		t.Errorf("decompress(blank) = %g, %v; want 0, nil", got, err)
	}
}

func TestRoundTripPrecision(t *testing.T) {
	rec := Record{
		Name:           "SYNTH 1",
		SatNum:         70001,
		Classification: 'U',
		IntlDesig:      "24001A",
		EpochYear:      24,
		EpochDay:       201.73920011,
		NDot:           -2.31e-6,
		NDDot:          1.2345e-6,
		Bstar:          -5.4321e-4,
		EphType:        0,
		ElNum:          42,
		InclDeg:        97.4412,
		RAANDeg:        311.9021,
		Ecc:            0.0012345,
		ArgpDeg:        88.1234,
		MeanAnomDeg:    271.9876,
		MeanMotion:     14.98765432,
		RevNum:         12345,
	}
	rec.Epoch = EpochTime(rec.EpochYear, rec.EpochDay)

	line0, line1, line2 := Encode(rec)
	got, err := Decode(line0, line1, line2)
	if err != nil {
		t.Fatalf("Decode(Encode(rec)) failed: %v", err)
	}

	if got.SatNum != rec.SatNum || got.Classification != rec.Classification ||
		got.IntlDesig != rec.IntlDesig || got.ElNum != rec.ElNum ||
		got.RevNum != rec.RevNum || got.EphType != rec.EphType {
		t.Errorf("identity fields changed: %+v", got)
	}
	if math.Abs(got.Ecc-rec.Ecc) > 1e-7 {
		t.Errorf("Ecc = %.8f, want %.8f within 1e-7", got.Ecc, rec.Ecc)
	}
	for _, f := range []struct {
		name      string
		got, want float64
	}{
		{"InclDeg", got.InclDeg, rec.InclDeg},
		{"RAANDeg", got.RAANDeg, rec.RAANDeg},
		{"ArgpDeg", got.ArgpDeg, rec.ArgpDeg},
		{"MeanAnomDeg", got.MeanAnomDeg, rec.MeanAnomDeg},
	} {
		if math.Abs(f.got-f.want) > 1e-4 {
			t.Errorf("%s = %.5f, want %.5f within 1e-4", f.name, f.got, f.want)
		}
	}
	if math.Abs(got.MeanMotion-rec.MeanMotion) > 1e-8 {
		t.Errorf("MeanMotion = %.9f, want %.9f within 1e-8", got.MeanMotion, rec.MeanMotion)
	}
	if rel := math.Abs(got.Bstar-rec.Bstar) / math.Abs(rec.Bstar); rel > 1e-4 {
		t.Errorf("Bstar = %g, want %g within 5 significant digits", got.Bstar, rec.Bstar)
	}
	if rel := math.Abs(got.NDDot-rec.NDDot) / math.Abs(rec.NDDot); rel > 1e-4 {
		t.Errorf("NDDot = %g, want %g within 5 significant digits", got.NDDot, rec.NDDot)
	}
	if math.Abs(got.NDot-rec.NDot) > 1e-8 {
		t.Errorf("NDot = %g, want %g", got.NDot, rec.NDot)
	}
}
