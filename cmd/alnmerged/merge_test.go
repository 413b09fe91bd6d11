package main

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aln-tools/multireader/alnfile"
	"github.com/aln-tools/multireader/header"
	"github.com/aln-tools/multireader/reference"
)

func writeFixture(t *testing.T, dir, name string, records []alnfile.RecordInput) {
	t.Helper()
	hdr, err := header.Parse("@HD\tSO:coordinate\n")
	require.NoError(t, err)
	refs := reference.Table{{Name: "chr1", Length: 1000}}
	require.NoError(t, alnfile.WriteFile(filepath.Join(dir, name), hdr, refs, records))
}

func TestMergeHandlerStreamsMergedRecords(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	writeFixture(t, dir, "x.aln", []alnfile.RecordInput{
		{RefID: 0, Position: 10, Name: "x1"},
		{RefID: 0, Position: 30, Name: "x2"},
	})
	writeFixture(t, dir, "y.aln", []alnfile.RecordInput{
		{RefID: 0, Position: 20, Name: "y1"},
	})

	router := gin.New()
	router.GET("/merge", newMergeHandler(dir))

	req := httptest.NewRequest(http.MethodGet, "/merge?"+url.Values{"files": {"x.aln,y.aln"}}.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var names []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var got mergedRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &got))
		names = append(names, got.QueryName)
	}
	assert.Equal(t, []string{"x1", "y1", "x2"}, names)
}

func TestMergeHandlerRejectsMissingFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	router := gin.New()
	router.GET("/merge", newMergeHandler(dir))

	req := httptest.NewRequest(http.MethodGet, "/merge", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMergeHandlerRejectsUnopenableFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	router := gin.New()
	router.GET("/merge", newMergeHandler(dir))

	req := httptest.NewRequest(http.MethodGet, "/merge?"+url.Values{"files": {"missing.aln"}}.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
