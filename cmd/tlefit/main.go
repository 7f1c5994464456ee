// Command tlefit decodes two-line element files and optionally refits every
// element set to a new epoch.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/star/tlefit/internal/catalog"
	"github.com/star/tlefit/internal/fit"
	"github.com/star/tlefit/internal/propagation"
	"github.com/star/tlefit/internal/tle"
)

func main() {
	var (
		target  = flag.String("target", "", "refit epoch (RFC3339); omit to just decode")
		workers = flag.Int("workers", runtime.NumCPU(), "parallel fits during refit")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <tle-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR reading file:", err)
		os.Exit(1)
	}

	recs, err := catalog.Parse(bytes.NewReader(data), logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR parsing element sets:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Fprintln(os.Stderr, "no element sets found")
		os.Exit(1)
	}

	if *target == "" {
		for _, rec := range recs {
			printRecord(rec)
		}
		return
	}

	targetTime, err := time.Parse(time.RFC3339, *target)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR parsing -target:", err)
		os.Exit(1)
	}

	fitter := fit.New(propagation.NewSGP4(), fit.DefaultOptions(), logger)
	pool := fit.NewPool(*workers, fitter, logger)

	results := pool.RefitBatch(context.Background(), recs, targetTime)

	exit := 0
	for _, br := range results {
		if br.Err != nil {
			fmt.Fprintf(os.Stderr, "ERROR fitting %d: %v\n", br.SatNum, br.Err)
			exit = 1
			continue
		}
		if !br.Result.Converged {
			fmt.Fprintf(os.Stderr, "WARNING: %d did not converge after %d iterations (dr=%.3f km)\n",
				br.SatNum, br.Result.Iterations, br.Result.PosResidualKm)
		}
		l0, l1, l2 := tle.Encode(br.Result.Record)
		if br.Result.Record.Name != "" {
			fmt.Println(l0)
		}
		fmt.Println(l1)
		fmt.Println(l2)
	}
	os.Exit(exit)
}

func printRecord(rec tle.Record) {
	name := rec.Name
	if name == "" {
		name = fmt.Sprintf("OBJECT %05d", rec.SatNum)
	}
	fmt.Printf("%s (NORAD %d, %s)\n", name, rec.SatNum, rec.IntlDesig)
	fmt.Printf("  epoch:       %s (%02d%012.8f)\n",
		rec.Epoch.UTC().Format(time.RFC3339Nano), rec.EpochYear, rec.EpochDay)
	fmt.Printf("  inclination: %.4f deg\n", rec.InclDeg)
	fmt.Printf("  raan:        %.4f deg\n", rec.RAANDeg)
	fmt.Printf("  ecc:         %.7f\n", rec.Ecc)
	fmt.Printf("  argp:        %.4f deg\n", rec.ArgpDeg)
	fmt.Printf("  mean anom:   %.4f deg\n", rec.MeanAnomDeg)
	fmt.Printf("  mean motion: %.8f rev/day\n", rec.MeanMotion)
	fmt.Printf("  bstar:       %g\n", rec.Bstar)
}
