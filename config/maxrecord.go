package config

import (
	"fmt"
	"strings"
	"time"
)

type Preset struct {
	Label    string
	Duration time.Duration // 0 is unlimited
}

var MaxRecordPresets = []Preset{
	{"5 seconds", 5 * time.Second},
	{"10 seconds", 10 * time.Second},
	{"30 seconds", 30 * time.Second},
	{"1 minute", time.Minute},
	{"2 minutes", 2 * time.Minute},
	{"5 minutes", 5 * time.Minute},
	{"Unlimited", 0},
}

// ParseMaxRecord accepts a preset label (case-insensitive) or a Go duration.
func ParseMaxRecord(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	for _, p := range MaxRecordPresets {
		if strings.EqualFold(s, p.Label) {
			return p.Duration, nil
		}
	}
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid max record %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("max record must not be negative: %q", s)
	}
	return d, nil
}

// MaxRecordLabel names d, using the preset label when one matches.
func MaxRecordLabel(d time.Duration) string {
	for _, p := range MaxRecordPresets {
		if p.Duration == d {
			return p.Label
		}
	}
	return d.String()
}

// NextMaxRecord returns the preset after d, wrapping around. A value that
// is not a preset moves to the first one.
func NextMaxRecord(d time.Duration) time.Duration {
	for i, p := range MaxRecordPresets {
		if p.Duration == d {
			return MaxRecordPresets[(i+1)%len(MaxRecordPresets)].Duration
		}
	}
	return MaxRecordPresets[0].Duration
}
