// Package ids hands out page-unique element ids ("calendar-1", "event-7").
// The counter table lives for the whole process.
package ids

import (
	"strconv"
	"sync"
)

var (
	mu       sync.Mutex
	counters = map[string]int{}
)

// Next returns the next id for prefix, starting at prefix-1.
func Next(prefix string) string {
	mu.Lock()
	defer mu.Unlock()
	counters[prefix]++
	return prefix + "-" + strconv.Itoa(counters[prefix])
}
