package pipeline

import (
	"fmt"
)

// MalformedPolicy decides what a run does with a page that has a course on
// it that could not be parsed.
type MalformedPolicy string

const (
	// MalformedSkip reports the page and moves on to the next id.
	MalformedSkip MalformedPolicy = "skip"
	// MalformedAbort ends the run with the parse error.
	MalformedAbort MalformedPolicy = "abort"
)

// AggregateMode decides how the aggregate snapshot is kept up to date.
type AggregateMode string

const (
	// AggregateIncremental updates the snapshot after every written course.
	AggregateIncremental AggregateMode = "incremental"
	// AggregateRebuild recomputes the snapshot from the primary store once
	// every id has been checked.
	AggregateRebuild AggregateMode = "rebuild"
	// AggregateOff leaves the snapshot alone.
	AggregateOff AggregateMode = "off"
)

// Config is the set of parameters for a single run over [Start, End).
type Config struct {
	Term  string `json:"term"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`

	MalformedPolicy MalformedPolicy `json:"malformed_policy"`
	AggregateMode   AggregateMode   `json:"aggregate_mode"`
}

func (c *Config) SetDefaults() {
	if c.MalformedPolicy == "" {
		c.MalformedPolicy = MalformedSkip
	}
	if c.AggregateMode == "" {
		c.AggregateMode = AggregateIncremental
	}
}

func (c Config) Validate() error {
	if c.Term == "" {
		return fmt.Errorf("term must be specified")
	}
	if c.Start < 0 {
		return fmt.Errorf("start must not be negative, got %d", c.Start)
	}
	if c.End < c.Start {
		return fmt.Errorf("end (%d) must not be less than start (%d)", c.End, c.Start)
	}
	switch c.MalformedPolicy {
	case MalformedSkip, MalformedAbort:
	default:
		return fmt.Errorf("unknown malformed policy '%s'", c.MalformedPolicy)
	}
	switch c.AggregateMode {
	case AggregateIncremental, AggregateRebuild, AggregateOff:
	default:
		return fmt.Errorf("unknown aggregate mode '%s'", c.AggregateMode)
	}
	return nil
}
