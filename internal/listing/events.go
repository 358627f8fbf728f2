package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/snapetech/livetv-player/internal/catalog"
)

// Clock supplies "now" and the display zone for local event times.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Clock) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// LocalTime converts an "HH:MM" UTC time on today's UTC date into the clock's
// zone, formatted like "3:30 PM". Unparsable input comes back as "<in> (UTC)".
func (c Clock) LocalTime(utc string) string {
	t, err := time.Parse("15:04", strings.TrimSpace(utc))
	if err != nil {
		return utc + " (UTC)"
	}
	n := c.now().UTC()
	ev := time.Date(n.Year(), n.Month(), n.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	return ev.In(c.location()).Format("3:04 PM")
}

type rawEvent struct {
	Time      json.RawMessage `json:"time"`
	Event     json.RawMessage `json:"event"`
	Channels  json.RawMessage `json:"channels"`
	Channels2 json.RawMessage `json:"channels2"`
}

// ParseEvents flattens the schedule feed, shaped {date: {category: [event]}},
// into one Event per (event, channel) pair, preserving feed order. An event
// without channels yields a single Event with the catalog.NoChannel sentinels.
func ParseEvents(data []byte, clock Clock) ([]catalog.Event, error) {
	var out []catalog.Event
	err := eachMember(data, func(dateFull string, categories json.RawMessage) error {
		date := strings.TrimSpace(strings.SplitN(dateFull, " - ", 2)[0])
		return eachMember(categories, func(category string, list json.RawMessage) error {
			var events []rawEvent
			if err := json.Unmarshal(list, &events); err != nil {
				return fmt.Errorf("%s/%s: %w", dateFull, category, err)
			}
			for _, ev := range events {
				rows, err := expandEvent(date, category, ev, clock)
				if err != nil {
					return fmt.Errorf("%s/%s: %w", dateFull, category, err)
				}
				out = append(out, rows...)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func expandEvent(date, category string, ev rawEvent, clock Clock) ([]catalog.Event, error) {
	timeUTC := jsonText(ev.Time, "N/A")
	base := catalog.Event{
		Date:      date,
		TimeUTC:   timeUTC,
		TimeLocal: clock.LocalTime(timeUTC),
		Category:  category,
		Title:     html.UnescapeString(jsonText(ev.Event, "N/A")),
	}
	first, err := channelEntries(ev.Channels)
	if err != nil {
		return nil, err
	}
	second, err := channelEntries(ev.Channels2)
	if err != nil {
		return nil, err
	}
	all := append(first, second...)
	if len(all) == 0 {
		base.ChannelName = catalog.NoChannelName
		base.ChannelID = catalog.NoChannelID
		return []catalog.Event{base}, nil
	}
	rows := make([]catalog.Event, 0, len(all))
	for _, raw := range all {
		if !isObject(raw) {
			// Malformed channel entries are dropped without a sentinel row.
			continue
		}
		var ch struct {
			Name json.RawMessage `json:"channel_name"`
			ID   json.RawMessage `json:"channel_id"`
		}
		if err := json.Unmarshal(raw, &ch); err != nil {
			continue
		}
		row := base
		row.ChannelName = html.UnescapeString(jsonText(ch.Name, "N/A"))
		row.ChannelID = jsonText(ch.ID, catalog.NoChannelID)
		rows = append(rows, row)
	}
	return rows, nil
}

// channelEntries normalizes a channels value. Arrays are used as-is. A single
// channel object becomes a one-element list; an object keyed by index has its
// values used in order. Truthy scalars become a one-element (unusable) list and
// falsy values an empty one.
func channelEntries(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !truthy(raw) {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, err
		}
		_, hasName := probe["channel_name"]
		_, hasID := probe["channel_id"]
		if hasName || hasID {
			return []json.RawMessage{raw}, nil
		}
		var list []json.RawMessage
		err := eachMember(raw, func(_ string, v json.RawMessage) error {
			list = append(list, v)
			return nil
		})
		return list, err
	default:
		return []json.RawMessage{raw}, nil
	}
}

// eachMember walks a JSON object's members in document order.
func eachMember(raw []byte, fn func(key string, val json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", kt)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return err
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// jsonText renders a scalar as text: strings unquoted, numbers verbatim,
// null or missing as def.
func jsonText(raw json.RawMessage, def string) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return def
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return def
	}
	return string(raw)
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func truthy(raw json.RawMessage) bool {
	switch string(raw) {
	case "null", "false", "0", `""`, "[]", "{}":
		return false
	}
	return true
}
