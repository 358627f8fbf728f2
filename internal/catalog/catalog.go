package catalog

import (
	"strconv"
	"strings"
	"sync"
)

// Sentinels for an event published without any channel.
const (
	NoChannelName = "NO CHANNEL LISTED"
	NoChannelID   = "N/A"
)

// Channel is one 24/7 channel from the listing page. ID is the site's numeric
// stream number and is unique within a listing.
type Channel struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Event is one (scheduled event, channel) pairing from the schedule feed.
// An event carried by three channels yields three Events; an event with no
// channels yields one Event with the NoChannel sentinels.
type Event struct {
	Date        string `json:"date"`       // e.g. "Saturday 14th Jun 2025"
	TimeUTC     string `json:"time_utc"`   // "HH:MM" as published
	TimeLocal   string `json:"time_local"` // e.g. "3:30 PM", or "<TimeUTC> (UTC)" when unparsable
	Category    string `json:"category"`
	Title       string `json:"title"`
	ChannelName string `json:"channel_name"`
	ChannelID   string `json:"channel_id"` // numeric string or NoChannelID
}

// ChannelNumber parses ChannelID; ok is false for the sentinel or junk ids.
func (e Event) ChannelNumber() (int, bool) {
	if e.ChannelID == NoChannelID {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(e.ChannelID))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Playable reports whether the event names a channel that can be launched.
func (e Event) Playable() bool {
	if e.ChannelName == NoChannelName {
		return false
	}
	_, ok := e.ChannelNumber()
	return ok
}

// ChannelSet accumulates channels in insertion order, dropping repeated IDs
// (first occurrence wins).
type ChannelSet struct {
	seen  map[int]struct{}
	items []Channel
}

// NewChannelSet returns an empty set.
func NewChannelSet() *ChannelSet {
	return &ChannelSet{seen: make(map[int]struct{})}
}

// Add inserts ch unless its ID is already present. Reports whether it was added.
func (s *ChannelSet) Add(ch Channel) bool {
	if _, dup := s.seen[ch.ID]; dup {
		return false
	}
	s.seen[ch.ID] = struct{}{}
	s.items = append(s.items, ch)
	return true
}

// Len returns the number of distinct channels.
func (s *ChannelSet) Len() int { return len(s.items) }

// Channels returns the channels in insertion order.
func (s *ChannelSet) Channels() []Channel {
	out := make([]Channel, len(s.items))
	copy(out, s.items)
	return out
}

// Catalog is the latest listing refresh, shared between the worker that
// fetches it and the front end that reads it.
type Catalog struct {
	mu       sync.RWMutex
	channels []Channel
	events   []Event
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{}
}

// Replace swaps in a new listing. Either slice may be nil to keep the current one.
func (c *Catalog) Replace(channels []Channel, events []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if channels != nil {
		c.channels = channels
	}
	if events != nil {
		c.events = events
	}
}

// Snapshot returns copies of channels and events for read-only use.
func (c *Catalog) Snapshot() (channels []Channel, events []Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels = make([]Channel, len(c.channels))
	copy(channels, c.channels)
	events = make([]Event, len(c.events))
	copy(events, c.events)
	return channels, events
}

// PlayableEvents returns the events that can be launched, in listing order.
func PlayableEvents(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Playable() {
			out = append(out, e)
		}
	}
	return out
}

// FindChannel returns the channel with id, if listed.
func FindChannel(channels []Channel, id int) (Channel, bool) {
	for _, ch := range channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return Channel{}, false
}
