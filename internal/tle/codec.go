package tle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// lineLen is the fixed width of lines 1 and 2 including the checksum digit.
const lineLen = 69

// Decode parses the three lines of an element set into a Record. line0 is
// the free-text name line, optionally prefixed "0 ". Checksums are not
// verified; callers needing integrity must call Checksum themselves.
func Decode(line0, line1, line2 string) (Record, error) {
	line0 = strings.TrimRight(line0, "\r\n ")
	line1 = strings.TrimRight(line1, "\r\n")
	line2 = strings.TrimRight(line2, "\r\n")

	name := line0
	if strings.HasPrefix(name, "0 ") {
		name = name[2:]
	}

	// Every indexed column below lies within the first 68 characters;
	// the trailing checksum digit is never read.
	if len(line1) < lineLen-1 {
		return Record{}, fmt.Errorf("%w: line1 is %d characters, need %d", ErrFormat, len(line1), lineLen-1)
	}
	if len(line2) < lineLen-1 {
		return Record{}, fmt.Errorf("%w: line2 is %d characters, need %d", ErrFormat, len(line2), lineLen-1)
	}

	var (
		rec Record
		err error
	)
	rec.Name = name

	if rec.SatNum, err = parseInt(line1[2:7]); err != nil {
		return Record{}, fmt.Errorf("%w: satellite number: %v", ErrFormat, err)
	}
	rec.Classification = line1[7]
	rec.IntlDesig = strings.TrimRight(line1[9:17], " ")

	if rec.EpochYear, err = parseInt(line1[18:20]); err != nil {
		return Record{}, fmt.Errorf("%w: epoch year: %v", ErrFormat, err)
	}
	if rec.EpochDay, err = parseFloat(line1[20:32]); err != nil {
		return Record{}, fmt.Errorf("%w: epoch day: %v", ErrFormat, err)
	}
	rec.Epoch = EpochTime(rec.EpochYear, rec.EpochDay)

	if rec.NDot, err = parseFloat(line1[33:43]); err != nil {
		return Record{}, fmt.Errorf("%w: ndot: %v", ErrFormat, err)
	}
	if rec.NDDot, err = decompress(line1[44:52]); err != nil {
		return Record{}, fmt.Errorf("%w: nddot: %v", ErrFormat, err)
	}
	if rec.Bstar, err = decompress(line1[53:61]); err != nil {
		return Record{}, fmt.Errorf("%w: bstar: %v", ErrFormat, err)
	}
	if rec.EphType, err = parseInt(line1[62:63]); err != nil {
		return Record{}, fmt.Errorf("%w: ephemeris type: %v", ErrFormat, err)
	}
	if rec.ElNum, err = parseInt(line1[64:68]); err != nil {
		return Record{}, fmt.Errorf("%w: element set number: %v", ErrFormat, err)
	}

	if rec.InclDeg, err = parseFloat(line2[8:16]); err != nil {
		return Record{}, fmt.Errorf("%w: inclination: %v", ErrFormat, err)
	}
	if rec.RAANDeg, err = parseFloat(line2[17:25]); err != nil {
		return Record{}, fmt.Errorf("%w: raan: %v", ErrFormat, err)
	}
	// Eccentricity is 7 digits with an implied leading "0."; blanks read
	// as zero fill.
	eccDigits := strings.ReplaceAll(line2[26:33], " ", "0")
	eccInt, err := strconv.Atoi(eccDigits)
	if err != nil {
		return Record{}, fmt.Errorf("%w: eccentricity: %v", ErrFormat, err)
	}
	rec.Ecc = float64(eccInt) * 1e-7

	if rec.ArgpDeg, err = parseFloat(line2[34:42]); err != nil {
		return Record{}, fmt.Errorf("%w: argument of perigee: %v", ErrFormat, err)
	}
	if rec.MeanAnomDeg, err = parseFloat(line2[43:51]); err != nil {
		return Record{}, fmt.Errorf("%w: mean anomaly: %v", ErrFormat, err)
	}
	if rec.MeanMotion, err = parseFloat(line2[52:63]); err != nil {
		return Record{}, fmt.Errorf("%w: mean motion: %v", ErrFormat, err)
	}
	if rec.RevNum, err = parseInt(line2[63:68]); err != nil {
		return Record{}, fmt.Errorf("%w: revolution number: %v", ErrFormat, err)
	}

	return rec, nil
}

// Encode formats a Record into its three text lines. Lines 1 and 2 are
// exactly 69 characters each, ending in the mod-10 checksum digit. The
// encoding is lossy at the format's field precision (eccentricity 1e-7,
// angles 1e-4 degree, mean motion 1e-8 rev/day).
func Encode(rec Record) (line0, line1, line2 string) {
	line0 = rec.Name

	l1 := fmt.Sprintf("1 %05d%c %-8s %02d%012.8f %s %s %s %d %4d",
		rec.SatNum, rec.Classification, rec.IntlDesig,
		rec.EpochYear, rec.EpochDay,
		formatNDot(rec.NDot), compress(rec.NDDot), compress(rec.Bstar),
		rec.EphType, rec.ElNum)
	line1 = l1 + strconv.Itoa(Checksum(l1))

	l2 := fmt.Sprintf("2 %05d %8.4f %8.4f %07d %8.4f %8.4f %11.8f%5d",
		rec.SatNum, rec.InclDeg, rec.RAANDeg,
		int(math.Round(rec.Ecc*1e7)),
		rec.ArgpDeg, rec.MeanAnomDeg, rec.MeanMotion, rec.RevNum)
	line2 = l2 + strconv.Itoa(Checksum(l2))

	return line0, line1, line2
}

// Checksum returns the TLE line checksum: the sum of all digit values plus
// the count of '-' characters, mod 10.
func Checksum(s string) int {
	sum := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// formatNDot renders the first mean-motion derivative as a sign character
// (space for non-negative) followed by the value with its leading zero
// stripped, e.g. " .00001847". Assumes |v| < 1, which holds for any orbit
// the format can represent.
func formatNDot(v float64) string {
	sign := " "
	if v < 0 {
		sign = "-"
	}
	return sign + fmt.Sprintf("%.8f", math.Abs(v))[1:]
}

// compress renders a value in the format's 8-character compressed
// scientific notation: sign, 5-digit mantissa, signed 1-digit exponent,
// read back as mantissa*1e-5*10^exp. Exactly zero is a special case; log10
// is undefined there.
func compress(v float64) string {
	if v == 0.0 {
		return " 00000-0"
	}
	sign := " "
	if v < 0 {
		sign = "-"
	}
	av := math.Abs(v)
	exp := int(math.Floor(math.Log10(av))) + 1
	mant := int(math.Round(av / math.Pow(10, float64(exp)) * 1e5))
	if mant == 100000 { // rounding crossed a decade
		mant = 10000
		exp++
	}
	return fmt.Sprintf("%s%05d%+d", sign, mant, exp)
}

// decompress parses the 8-character compressed form. An all-blank field
// reads as zero, which some historical element sets use for nddot.
func decompress(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	sign := 1.0
	if s[0] == '-' {
		sign = -1.0
	}
	mant, err := strconv.Atoi(strings.ReplaceAll(s[1:6], " ", "0"))
	if err != nil {
		return 0, err
	}
	expStr := strings.TrimSpace(s[6:8])
	exp := 0
	if expStr != "" {
		if exp, err = strconv.Atoi(expStr); err != nil {
			return 0, err
		}
	}
	return sign * float64(mant) * 1e-5 * math.Pow(10, float64(exp)), nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
