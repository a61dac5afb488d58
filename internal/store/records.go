package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Build is one recorded build. Steps is populated by GetBuild only.
type Build struct {
	ID             string
	Project        string
	ManifestPath   string
	ManifestDigest string
	PlanDigest     string
	Version        string
	Formats        []string
	Status         string
	Error          string
	StartedAt      time.Time
	Duration       time.Duration
	Steps          []Step
}

// Step is one recorded plan step.
type Step struct {
	BuildID   string
	Seq       int
	Phase     string
	Name      string
	Kind      string
	Command   []string
	Status    string
	ExitCode  int
	StartedAt time.Time
	Duration  time.Duration
	LogTail   string
}

// encodeStrings renders a string slice as a JSON array column value.
func encodeStrings(v []string) (string, error) {
	if len(v) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode string list: %w", err)
	}
	return string(b), nil
}

// decodeStrings parses a JSON array column value. Never returns nil.
func decodeStrings(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode string list %q: %w", raw, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// msToTime converts a unix-milliseconds column to time.Time. Zero stays the
// zero time, so steps that never started round-trip cleanly.
func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// timeToMS is the inverse of msToTime.
func timeToMS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
