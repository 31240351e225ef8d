package models

import "time"

// DumpResult holds the result of a pg_dump operation.
type DumpResult struct {
	OutputPath string
	SizeBytes  int64
	WithData   bool
	Duration   time.Duration
	Error      error
}

// ApplyResult holds the result of replaying a dump with psql.
type ApplyResult struct {
	DumpPath string
	Duration time.Duration
	Error    error
}
