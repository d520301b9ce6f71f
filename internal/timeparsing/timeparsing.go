// Package timeparsing resolves user-supplied expiry times: RFC3339
// timestamps, simple +duration offsets, or natural language ("in 2
// weeks", "next monday").
package timeparsing

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ParseRelativeTime parses raw relative to base. Accepted forms, in
// order: RFC3339, "+<duration>" (Go duration syntax), natural
// language.
func ParseRelativeTime(raw string, base time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}

	if strings.HasPrefix(raw, "+") {
		d, err := time.ParseDuration(raw[1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid duration offset %q: %w", raw, err)
		}
		return base.Add(d).UTC(), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	result, err := w.Parse(raw, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time expression %q: %w", raw, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("unrecognized time expression %q", raw)
	}
	return result.Time.UTC(), nil
}
