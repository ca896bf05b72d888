package main

import "github.com/elastic-io/mediagate/cmd"

// version must be set from the contents of VERSION file by go build's
// -X main.version= option in the Makefile.
var version = "unknown"

// gitCommit will be the hash that the binary was built from
// and will be populated by the Makefile
var gitCommit = ""

const (
	usage = `
To start the upload server:
    # mediagate --s3-endpoint https://s3.example.com --s3-bucket media serve -e 0.0.0.0:3000
`
)

func main() {
	cmd.Execute("mediagate", usage, version, gitCommit)
}
