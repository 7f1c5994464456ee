package catalog

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const (
	issName = "ISS (ZARYA)"
	issL1   = "1 25544U 98067A   20053.24093319  .00001847  00000-0  41427-4 0  9993"
	issL2   = "2 25544  51.6429 202.1571 0004852 303.4083 121.5105 15.49190851214046"

	vanguardL1 = "1 00020U 59007A   20052.91101915  .00000557  00000-0  19448-3 0  9995"
	vanguardL2 = "2 00020  33.3419 243.9185 1666981 112.7784 265.5078 11.55869318486419"
)

func TestParseThreeLineFormat(t *testing.T) {
	text := issName + "\n" + issL1 + "\n" + issL2 + "\n"
	recs, err := Parse(strings.NewReader(text), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].SatNum != 25544 || recs[0].Name != issName {
		t.Errorf("unexpected record: %+v", recs[0])
	}
}

func TestParseMixedFormats(t *testing.T) {
	// A 3-line entry followed by a bare 2-line entry, with CRLF endings.
	text := issName + "\r\n" + issL1 + "\r\n" + issL2 + "\r\n" +
		vanguardL1 + "\r\n" + vanguardL2 + "\r\n"

	recs, err := Parse(strings.NewReader(text), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].SatNum != 25544 {
		t.Errorf("first record satnum = %d, want 25544", recs[0].SatNum)
	}
	if recs[1].SatNum != 20 || recs[1].Name != "" {
		t.Errorf("second record = %+v, want bare satnum 20", recs[1])
	}
}

func TestParseSkipsMalformedEntries(t *testing.T) {
	// A corrupted first entry must not take the following good one with it.
	badL1 := issL1[:40] // truncated line1
	text := "BROKEN SAT\n" + badL1 + "\n" + issL2 + "\n" +
		issName + "\n" + issL1 + "\n" + issL2 + "\n"

	recs, err := Parse(strings.NewReader(text), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].SatNum != 25544 {
		t.Errorf("surviving record satnum = %d, want 25544", recs[0].SatNum)
	}
}

func TestParseEmptyInput(t *testing.T) {
	recs, err := Parse(strings.NewReader(""), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d records, want 0", len(recs))
	}
}

func TestStore(t *testing.T) {
	s := NewStore()
	if s.Get() != nil {
		t.Error("empty store should return nil")
	}
	if age := s.AgeSeconds(); age != -1 {
		t.Errorf("empty store age = %f, want -1", age)
	}

	c := &Catalog{
		Source:    "test",
		FetchedAt: time.Now().Add(-10 * time.Second),
	}
	s.Set(c)

	if got := s.Get(); got != c {
		t.Error("Get did not return the stored catalog")
	}
	age := s.AgeSeconds()
	if age < 9 || age > 12 {
		t.Errorf("age = %f, want about 10 seconds", age)
	}
}
