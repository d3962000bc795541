// Package config provides the job model and helpers for the command-line
// tools.
//
// This file adds a lightweight linter/validator for Job values. It performs
// static checks over a decoded Job and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"

	"lazycol/internal/codec"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Job.
//
// Path is a dotted path into the config (e.g. "output.compression").
// Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue in the list is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateJob performs static validation / linting of a Job.
//
// It does not mutate the job. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
func ValidateJob(j Job) []Issue {
	var issues []Issue

	if strings.TrimSpace(j.Name) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "name",
			Message:  "name is empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateInput(j.Input)...)
	issues = append(issues, validatePartitioning(j.Partitioning, j.Input)...)
	issues = append(issues, validateSampling(j.Sampling)...)
	issues = append(issues, validateOutput(j.Output)...)
	issues = append(issues, validateMetrics(j.Metrics)...)

	return issues
}

func validateInput(in Input) []Issue {
	var issues []Issue
	hasPattern := strings.TrimSpace(in.Pattern) != ""
	if !hasPattern && len(in.Paths) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "input",
			Message:  "either input.pattern or input.paths is required",
		})
	}
	if hasPattern && len(in.Paths) > 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "input",
			Message:  "input.pattern and input.paths are mutually exclusive",
		})
	}
	for i, p := range in.Paths {
		if strings.TrimSpace(p) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("input.paths[%d]", i),
				Message:  "path must not be empty",
			})
		}
	}
	return issues
}

func validatePartitioning(p Partitioning, in Input) []Issue {
	var issues []Issue
	if p.Blocksize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "partitioning.blocksize",
			Message:  "blocksize must not be negative",
		})
	}
	if p.LinesPerPartition < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "partitioning.lines_per_partition",
			Message:  "lines_per_partition must not be negative",
		})
	}
	if p.Blocksize > 0 && p.LinesPerPartition > 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "partitioning",
			Message:  "blocksize and lines_per_partition are mutually exclusive",
		})
	}
	if p.Delimiter != "" && p.Blocksize == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "partitioning.delimiter",
			Message:  "delimiter requires a blocksize",
		})
	}
	if p.Blocksize > 0 && p.Delimiter == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "partitioning.blocksize",
			Message:  "blocksize without a delimiter keeps each source as one partition",
		})
	}
	if in.OneObjPerFile && (p.Blocksize > 0 || p.LinesPerPartition > 0) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "partitioning",
			Message:  "one-object-per-file sources cannot be sub-divided",
		})
	}
	return issues
}

func validateSampling(s Sampling) []Issue {
	var issues []Issue
	if s.SampleRows < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sampling.sample_rows",
			Message:  "sample_rows must not be negative",
		})
	}
	if s.ByteChunks < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sampling.bytechunks",
			Message:  "bytechunks must not be negative",
		})
	}
	if s.ByteChunks > 0 && (s.ForceByLines || s.SampleRows > 0) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "sampling.bytechunks",
			Message:  "bytechunks is ignored when line-based sampling is selected",
		})
	}
	return issues
}

func validateOutput(o Output) []Issue {
	var issues []Issue
	if strings.TrimSpace(o.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.dir",
			Message:  "output.dir must not be empty",
		})
	}
	if o.Compression != "" {
		if _, err := codec.Lookup(o.Compression); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "output.compression",
				Message:  fmt.Sprintf("unknown codec %q; known: %s", o.Compression, strings.Join(codec.Names(), ", ")),
			})
		}
	}
	if o.Parallelism < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.parallelism",
			Message:  "parallelism must not be negative",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "prometheus", "datadog":
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; ensure a matching implementation exists", m.Backend),
		})
	}
	return issues
}
