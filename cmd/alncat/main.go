// alncat opens one or more ALN files as a single coordinate- or name-merged
// stream and writes the merged records to stdout, one per line. It is the
// flag-driven, single-process counterpart to htsget-server/main.go: no HTTP
// surface, just the core exercised end to end against real files.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/profile"

	"github.com/aln-tools/multireader/alnfile"
	"github.com/aln-tools/multireader/diagnostics"
	"github.com/aln-tools/multireader/filereader"
	"github.com/aln-tools/multireader/multireader"
)

var (
	region = flag.String("region", "", "restrict output to ref:start-end (e.g. chr1:1000-2000)")
	text   = flag.Bool("text", false, "materialize sequence/quality/tags for every record")

	profileMode = flag.String("profile", "", "enable profiling: cpu, mem, or empty to disable")
)

func main() {
	flag.Parse()

	switch *profileMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile).Stop()
	case "":
	default:
		log.Fatalf("unknown -profile mode %q", *profileMode)
	}

	if flag.NArg() == 0 {
		log.Fatalf("usage: alncat [flags] file.aln [file.aln ...]")
	}

	reader := multireader.New(diagnostics.Default())
	if err := reader.Open(alnfile.NewReader, flag.Args()); err != nil {
		log.Fatalf("opening sources: %v", err)
	}
	defer reader.Close()

	if *region != "" {
		r, err := parseRegion(reader, *region)
		if err != nil {
			log.Fatalf("parsing -region: %v", err)
		}
		if err := reader.SetRegion(r); err != nil {
			log.Fatalf("setting region: %v", err)
		}
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for {
		var (
			rec multireader.Record
			ok  bool
			err error
		)
		if *text {
			rec, ok, err = reader.Next()
		} else {
			rec, ok, err = reader.NextCore()
		}
		if err != nil {
			log.Fatalf("reading merged stream: %v", err)
		}
		if !ok {
			break
		}
		writeRecord(out, rec)
	}
}

func writeRecord(out *bufio.Writer, rec multireader.Record) {
	fmt.Fprintf(out, "%s\t%d\t%d\t%s\t%s\n", rec.Filename, rec.RefID, rec.Position, rec.QueryName, rec.Sequence)
}

func parseRegion(reader *multireader.MultiReader, spec string) (filereader.Region, error) {
	refPart, posPart, ok := strings.Cut(spec, ":")
	if !ok {
		return filereader.Region{}, fmt.Errorf("expected ref:start-end, got %q", spec)
	}
	startStr, endStr, ok := strings.Cut(posPart, "-")
	if !ok {
		return filereader.Region{}, fmt.Errorf("expected start-end, got %q", posPart)
	}

	refID := reader.GetReferenceID(refPart)
	start, err := strconv.Atoi(startStr)
	if err != nil {
		return filereader.Region{}, fmt.Errorf("parsing start: %w", err)
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return filereader.Region{}, fmt.Errorf("parsing end: %w", err)
	}
	return filereader.Region{LeftRefID: refID, LeftPos: int32(start), RightRefID: refID, RightPos: int32(end)}, nil
}
