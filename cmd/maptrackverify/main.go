// maptrackverify - validate maptrack journal files
//
// Checks every line of a runs or sessions journal against the embedded
// JSON Schema and reports the first malformed record of each file.
//
//	maptrackverify runs <runs.jsonl>
//	maptrackverify sessions <sessions.jsonl>
package main

import (
	"bufio"
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.schema.json
var schemaFS embed.FS

func main() {
	if len(os.Args) != 3 {
		usage()
		os.Exit(1)
	}

	var schemaName string
	switch os.Args[1] {
	case "runs":
		schemaName = "schema/run-record.schema.json"
	case "sessions":
		schemaName = "schema/session-record.schema.json"
	default:
		usage()
		os.Exit(1)
	}

	schema, err := compileSchema(schemaName)
	if err != nil {
		fatal(err)
	}

	path := os.Args[2]
	valid, invalid, err := validateFile(schema, path)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("%s: %d valid, %d invalid\n", path, valid, invalid)
	if invalid > 0 {
		os.Exit(1)
	}
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}

// validateFile checks each journal line against the schema. The first
// invalid line is reported with its line number; counting continues so
// the summary reflects the whole file.
func validateFile(schema *jsonschema.Schema, path string) (valid, invalid int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)

	line := 0
	reported := false
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var instance any
		if err := json.Unmarshal(raw, &instance); err != nil {
			invalid++
			if !reported {
				fmt.Fprintf(os.Stderr, "%s:%d: not JSON: %v\n", path, line, err)
				reported = true
			}
			continue
		}
		if err := schema.Validate(instance); err != nil {
			invalid++
			if !reported {
				fmt.Fprintf(os.Stderr, "%s:%d: %v\n", path, line, err)
				reported = true
			}
			continue
		}
		valid++
	}
	return valid, invalid, scanner.Err()
}

func usage() {
	fmt.Fprintln(os.Stderr, `maptrackverify - validate maptrack journal files

USAGE:
    maptrackverify runs <runs.jsonl>
    maptrackverify sessions <sessions.jsonl>`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
