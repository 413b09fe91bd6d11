package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aln-tools/multireader/alnfile"
	"github.com/aln-tools/multireader/alnfile/gcssource"
	"github.com/aln-tools/multireader/diagnostics"
	"github.com/aln-tools/multireader/filereader"
	"github.com/aln-tools/multireader/multireader"
)

// mergedRecord is the wire shape written back to clients, one per line of
// the response body.
type mergedRecord struct {
	Filename  string            `json:"filename"`
	RefID     int32             `json:"ref_id"`
	Position  int32             `json:"position"`
	QueryName string            `json:"query_name"`
	Sequence  string            `json:"sequence,omitempty"`
	Quality   string            `json:"quality,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// newMergeHandler builds a gin handler that opens the files named by the
// "files" query parameter (comma-separated, resolved under directory, or
// gs://bucket/object URLs fetched through gcssource), merges them, and
// streams the result as newline-delimited JSON.
//
// Every request gets its own MultiReader and its own request id, mirroring
// how htsget-multisource-server/file/reads.go resolves one BAM/BAI pair per
// request; the id is attached to a diagnostics.Sink so reposition/index
// warnings for concurrent requests are attributable in the server log.
func newMergeHandler(directory string) func(c *gin.Context) {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		sink := diagnostics.WithPrefix(fmt.Sprintf("[%s]", requestID))

		names := strings.Split(c.Query("files"), ",")
		paths, cleanup, err := resolveSources(c, directory, names)
		if err != nil {
			c.String(http.StatusBadRequest, "resolving files: %v", err)
			return
		}
		defer cleanup()
		if len(paths) == 0 {
			c.String(http.StatusBadRequest, "no files specified")
			return
		}

		reader := multireader.New(sink)
		if err := reader.Open(alnfile.NewReader, paths); err != nil {
			c.String(http.StatusBadRequest, "opening files: %v", err)
			return
		}
		defer reader.Close()

		if region, ok, err := parseRegionQuery(reader, c); err != nil {
			c.String(http.StatusBadRequest, "parsing region: %v", err)
			return
		} else if ok {
			if err := reader.SetRegion(region); err != nil {
				c.String(http.StatusInternalServerError, "setting region: %v", err)
				return
			}
		}

		c.Header("Content-Type", "application/x-ndjson")
		c.Header("X-Request-Id", requestID)
		c.Status(http.StatusOK)

		enc := json.NewEncoder(c.Writer)
		for {
			rec, ok, err := reader.Next()
			if err != nil {
				sink.Printf("reading merged stream: %v", err)
				return
			}
			if !ok {
				return
			}
			enc.Encode(mergedRecord{
				Filename:  rec.Filename,
				RefID:     rec.RefID,
				Position:  rec.Position,
				QueryName: rec.QueryName,
				Sequence:  rec.Sequence,
				Quality:   rec.Quality,
				Tags:      rec.Tags,
			})
			c.Writer.Flush()
		}
	}
}

// resolveSources turns the "files" query values into local paths, resolving
// plain names under directory and fetching gs://bucket/object names through
// gcssource into a temporary file first. The returned cleanup func removes
// any temporary files it created and must be called once the request is
// done reading them.
func resolveSources(c *gin.Context, directory string, names []string) (paths []string, cleanup func(), err error) {
	var tempFiles []string
	cleanup = func() {
		for _, p := range tempFiles {
			os.Remove(p)
		}
	}

	var gcs *gcssource.Client
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		if !strings.HasPrefix(name, "gs://") {
			paths = append(paths, filepath.Join(directory, filepath.Clean("/"+name)))
			continue
		}

		if gcs == nil {
			gcs, err = newGCSClient(c)
			if err != nil {
				cleanup()
				return nil, func() {}, fmt.Errorf("connecting to cloud storage: %w", err)
			}
			defer gcs.Close()
		}
		bucket, object, err := gcssource.ParseURL(name)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}

		dest, err := os.CreateTemp("", "alnmerged-*.aln")
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("creating temp file for %s: %w", name, err)
		}
		dest.Close()
		tempFiles = append(tempFiles, dest.Name())

		if err := gcs.Download(c.Request.Context(), bucket, object, dest.Name()); err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("fetching %s: %w", name, err)
		}
		paths = append(paths, dest.Name())
	}
	return paths, cleanup, nil
}

// newGCSClient builds a gcssource.Client authorized with the request's
// bearer token if one was forwarded, or a public, unauthenticated client
// otherwise.
func newGCSClient(c *gin.Context) (*gcssource.Client, error) {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return gcssource.NewClientFromBearerToken(c.Request.Context(), auth)
	}
	return gcssource.NewPublicClient(c.Request.Context())
}

func parseRegionQuery(reader *multireader.MultiReader, c *gin.Context) (filereader.Region, bool, error) {
	spec := c.Query("region")
	if spec == "" {
		return filereader.Region{}, false, nil
	}

	refPart, posPart, ok := strings.Cut(spec, ":")
	if !ok {
		return filereader.Region{}, false, fmt.Errorf("expected ref:start-end, got %q", spec)
	}
	startStr, endStr, ok := strings.Cut(posPart, "-")
	if !ok {
		return filereader.Region{}, false, fmt.Errorf("expected start-end, got %q", posPart)
	}
	start, err := strconv.Atoi(startStr)
	if err != nil {
		return filereader.Region{}, false, fmt.Errorf("parsing start: %w", err)
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return filereader.Region{}, false, fmt.Errorf("parsing end: %w", err)
	}

	refID := reader.GetReferenceID(refPart)
	return filereader.Region{LeftRefID: refID, LeftPos: int32(start), RightRefID: refID, RightPos: int32(end)}, true, nil
}
