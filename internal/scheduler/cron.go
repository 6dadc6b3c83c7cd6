// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package scheduler

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
type CronExpression struct {
	Minutes     []int // 0-59
	Hours       []int // 0-23
	DaysOfMonth []int // 1-31
	Months      []int // 1-12
	DaysOfWeek  []int // 0-6, 0 = Sunday
}

// ParseCron parses a standard 5-field cron expression.
//
// Supported syntax per field: *, n, n-m, lists (n,m), steps (*/n, n-m/s).
//
//	"0 3 * * *"    daily at 03:00
//	"*/15 * * * *" every 15 minutes
func ParseCron(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	specs := []struct {
		name     string
		min, max int
	}{
		{"minute", 0, 59},
		{"hour", 0, 23},
		{"day-of-month", 1, 31},
		{"month", 1, 12},
		{"day-of-week", 0, 7},
	}

	parsed := make([][]int, len(fields))
	for i, spec := range specs {
		values, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		parsed[i] = values
	}

	// 7 is an alias for Sunday.
	dow := make([]int, 0, len(parsed[4]))
	for _, d := range parsed[4] {
		dow = append(dow, d%7)
	}

	return &CronExpression{
		Minutes:     parsed[0],
		Hours:       parsed[1],
		DaysOfMonth: parsed[2],
		Months:      parsed[3],
		DaysOfWeek:  normalize(dow),
	}, nil
}

// NextRun returns the first matching minute strictly after the given time.
// A nil loc means UTC. Returns the zero time if nothing matches within four years.
func (c *CronExpression) NextRun(after time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := after.In(loc).Truncate(time.Minute).Add(time.Minute)

	const maxIterations = 4 * 366 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		if c.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (c *CronExpression) matches(t time.Time) bool {
	if !slices.Contains(c.Minutes, t.Minute()) ||
		!slices.Contains(c.Hours, t.Hour()) ||
		!slices.Contains(c.Months, int(t.Month())) {
		return false
	}

	domMatch := slices.Contains(c.DaysOfMonth, t.Day())
	dowMatch := slices.Contains(c.DaysOfWeek, int(t.Weekday()))
	domWildcard := len(c.DaysOfMonth) == 31
	dowWildcard := len(c.DaysOfWeek) == 7

	// Standard cron: when both day fields are restricted, either may match.
	switch {
	case domWildcard && dowWildcard:
		return true
	case domWildcard:
		return dowMatch
	case dowWildcard:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}

func parseField(field string, minVal, maxVal int) ([]int, error) {
	var result []int
	for _, part := range strings.Split(field, ",") {
		values, err := parseFieldPart(part, minVal, maxVal)
		if err != nil {
			return nil, err
		}
		result = append(result, values...)
	}
	return normalize(result), nil
}

func parseFieldPart(part string, minVal, maxVal int) ([]int, error) {
	step := 1
	if base, stepStr, ok := strings.Cut(part, "/"); ok {
		s, err := strconv.Atoi(stepStr)
		if err != nil || s <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", stepStr)
		}
		step = s
		part = base
		if part != "*" && !strings.Contains(part, "-") {
			// "n/s" means n through max.
			start, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid value: %s", part)
			}
			part = fmt.Sprintf("%d-%d", start, maxVal)
		}
	}

	start, end := minVal, maxVal
	switch {
	case part == "*":
	case strings.Contains(part, "-"):
		lo, hi, _ := strings.Cut(part, "-")
		var err error
		if start, err = strconv.Atoi(lo); err != nil {
			return nil, fmt.Errorf("invalid range start: %s", lo)
		}
		if end, err = strconv.Atoi(hi); err != nil {
			return nil, fmt.Errorf("invalid range end: %s", hi)
		}
	default:
		val, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid value: %s", part)
		}
		start, end = val, val
	}

	if start > end || start < minVal || end > maxVal {
		return nil, fmt.Errorf("value out of range: %d-%d (min=%d, max=%d)", start, end, minVal, maxVal)
	}

	var result []int
	for i := start; i <= end; i += step {
		result = append(result, i)
	}
	return result, nil
}

func normalize(values []int) []int {
	slices.Sort(values)
	return slices.Compact(values)
}
