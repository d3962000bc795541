// Package config defines the JSON-serializable job model consumed by the
// command-line tools. It is intentionally small and explicit so that jobs
// can be loaded from disk and passed through the program without additional
// glue code; decoding is performed by the standard library, with a light
// Options helper for typed access to free-form option bags.
//
// Example (trimmed):
//
//	{
//	  "name":   "points-by-day",
//	  "input":  { "pattern": "data/*.json", "one_obj_per_file": false },
//	  "partitioning": { "blocksize": 65536, "delimiter": "\n" },
//	  "sampling": { "sample_rows": 5 },
//	  "output": { "dir": "out", "compression": "gzip" },
//	  "metrics": { "backend": "prometheus", "options": { "push_url": "..." } }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Job describes one read/transform/write job end to end. It is the
// top-level object decoded from a job file.
type Job struct {
	// Name labels the job in logs and metrics.
	Name string `json:"name"`

	// Input says which sources to read.
	Input Input `json:"input"`

	// Partitioning selects the sizing policy. The zero value means one
	// partition per file.
	Partitioning Partitioning `json:"partitioning"`

	// Sampling controls form derivation.
	Sampling Sampling `json:"sampling"`

	// Output says where and how to write results.
	Output Output `json:"output"`

	// Metrics selects an optional metrics backend.
	Metrics Metrics `json:"metrics"`
}

// Input identifies the job's sources. Exactly one of Pattern or Paths is
// set.
type Input struct {
	// Pattern is a glob pattern, single path, or http(s) URL.
	Pattern string `json:"pattern"`

	// Paths is an explicit ordered path list.
	Paths []string `json:"paths"`

	// OneObjPerFile marks sources holding one JSON value per file.
	OneObjPerFile bool `json:"one_obj_per_file"`
}

// Partitioning selects one sizing strategy; blocksize and
// lines_per_partition are mutually exclusive.
type Partitioning struct {
	// Blocksize is the target bytes per partition.
	Blocksize int64 `json:"blocksize"`

	// Delimiter marks safe split points for byte-chunked partitioning,
	// typically "\n". Requires blocksize.
	Delimiter string `json:"delimiter"`

	// LinesPerPartition partitions by decoded line count.
	LinesPerPartition int `json:"lines_per_partition"`
}

// Sampling controls how the form is derived from the first source.
type Sampling struct {
	ForceByLines bool `json:"force_by_lines"`
	SampleRows   int  `json:"sample_rows"`
	ByteChunks   int  `json:"bytechunks"`
}

// Output configures the write stage.
type Output struct {
	// Dir is the destination directory; one file per partition.
	Dir string `json:"dir"`

	// Compression names the output codec; empty writes plain files.
	Compression string `json:"compression"`

	// Parallelism caps concurrent partition work. Zero means GOMAXPROCS.
	Parallelism int `json:"parallelism"`
}

// Metrics selects a metrics backend. Backend-specific settings live in the
// Options bag; see each backend's documentation for recognized keys.
type Metrics struct {
	// Backend is "prometheus", "datadog", or empty for none.
	Backend string `json:"backend"`

	Options Options `json:"options"`
}

// Load reads and decodes a job file.
func Load(path string) (Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("load job: %w", err)
	}
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return Job{}, fmt.Errorf("load job %s: %w", path, err)
	}
	return j, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
// If the value is neither float64 nor int, def is returned.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of
// strings (or an array of interface values containing strings). Returns nil
// when the key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null
// "options" object in JSON decodes to a non-nil, empty Options map. This
// simplifies call sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
