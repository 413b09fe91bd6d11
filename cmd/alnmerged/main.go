// alnmerged is a small HTTP front end over the core, structured after
// htsget-multisource-server/main.go: gin.Default() router, flag-configured
// port and serving directory, one handler per route. Where the original
// server resolves a single BAM/BAI pair per request, this one accepts a set
// of files and streams their merged records back as newline-delimited JSON.
package main

import (
	"flag"
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
)

var (
	port      = flag.Int("port", 8080, "HTTP service port")
	directory = flag.String("directory", "", "directory containing .aln files referenced by request file names")
)

func main() {
	flag.Parse()
	if *directory == "" {
		log.Fatalf("must specify -directory")
	}

	router := gin.Default()
	router.GET("/merge", newMergeHandler(*directory))
	router.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })

	if err := router.Run(":" + strconv.Itoa(*port)); err != nil {
		log.Fatalf("serving: %v", err)
	}
}
