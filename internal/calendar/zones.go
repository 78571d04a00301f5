package calendar

import (
	"fmt"
	"sync"
)

// ZoneChoice is the answer to a zone mismatch alert.
type ZoneChoice string

const (
	// KeepCalendarZone shows events in the zone the feed is written in.
	KeepCalendarZone ZoneChoice = "calendar"
	// UseViewerZone moves events into the viewer's zone.
	UseViewerZone ZoneChoice = "viewer"
)

func ParseZoneChoice(s string) (ZoneChoice, error) {
	switch c := ZoneChoice(s); c {
	case KeepCalendarZone, UseViewerZone:
		return c, nil
	}
	return "", fmt.Errorf("calendar: unknown zone choice %q", s)
}

// ZoneCache remembers zone choices for a session.
type ZoneCache interface {
	Choice(calendarZone, viewerZone string) (ZoneChoice, bool)
	Remember(calendarZone, viewerZone string, c ZoneChoice)
}

// MemoryZones is a ZoneCache held in memory.
type MemoryZones struct {
	mu sync.Mutex
	m  map[string]ZoneChoice
}

func NewMemoryZones() *MemoryZones {
	return &MemoryZones{m: map[string]ZoneChoice{}}
}

func (z *MemoryZones) Choice(calendarZone, viewerZone string) (ZoneChoice, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()
	c, ok := z.m[calendarZone+"|"+viewerZone]
	return c, ok
}

func (z *MemoryZones) Remember(calendarZone, viewerZone string, c ZoneChoice) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.m[calendarZone+"|"+viewerZone] = c
}
