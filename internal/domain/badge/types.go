// Package badge models POAP badge records and talks to the badge lookup API.
package badge

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// MaxShown is how many badges fit on a card.
const MaxShown = 7

type Event struct {
	Name     string
	ImageURL string
}

// Record is one badge held by an address.
type Record struct {
	ID        string
	CreatedAt time.Time
	Event     Event
}

type wireEvent struct {
	Name          string `json:"name"`
	ImageURL      string `json:"image_url"`
	ImageURLCamel string `json:"imageUrl"`
}

type wireRecord struct {
	ID        flexString `json:"id"`
	TokenID   flexString `json:"tokenId"`
	Created   Timestamp  `json:"created"`
	CreatedAt Timestamp  `json:"createdAt"`
	Event     wireEvent  `json:"event"`
}

// UnmarshalJSON accepts both the lookup API shape (tokenId, created, event.image_url)
// and the camel-case shape trusted callers post (id, createdAt, event.imageUrl).
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := sonic.Unmarshal(data, &w); err != nil {
		return err
	}
	r.ID = string(w.TokenID)
	if r.ID == "" {
		r.ID = string(w.ID)
	}
	r.CreatedAt = w.Created.Time
	if r.CreatedAt.IsZero() {
		r.CreatedAt = w.CreatedAt.Time
	}
	r.Event = Event{Name: w.Event.Name, ImageURL: w.Event.ImageURL}
	if r.Event.ImageURL == "" {
		r.Event.ImageURL = w.Event.ImageURLCamel
	}
	return nil
}

type Gateway struct {
	URL string `json:"url"`
}

type Media struct {
	Gateways []Gateway `json:"gateways"`
}

// Moment is an optional caller-supplied post whose media can replace the card background.
type Moment struct {
	CreatedAt Timestamp `json:"createdAt"`
	Media     []Media   `json:"media"`
}

// BackgroundURL returns the first gateway URL of the most recent moment, or "" when
// there are no moments or the most recent one carries no media.
func BackgroundURL(moments []Moment) string {
	if len(moments) == 0 {
		return ""
	}
	latest := moments[0]
	for _, m := range moments[1:] {
		if m.CreatedAt.After(latest.CreatedAt.Time) {
			latest = m
		}
	}
	if len(latest.Media) == 0 || len(latest.Media[0].Gateways) == 0 {
		return ""
	}
	return strings.TrimSpace(latest.Media[0].Gateways[0].URL)
}

// SelectBadges keeps the MaxShown most recent records and orders them oldest first,
// so recency increases left to right on the card. The input is not modified.
func SelectBadges(records []Record) []Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > MaxShown {
		sorted = sorted[:MaxShown]
	}
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}
	return sorted
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp decodes the assorted time encodings seen in badge and moment payloads:
// RFC 3339, "2006-01-02 15:04:05", a bare date, or epoch milliseconds.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] != '"' {
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("timestamp %s: %w", data, err)
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	parsed, err := ParseTime(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTime parses s with each accepted layout in turn. An empty string is the zero time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}
