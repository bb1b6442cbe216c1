package midi

import (
	"sort"
	"sync"
)

// ChannelFilter remaps the channel of every note before it reaches the
// voice allocator.
type ChannelFilter interface {
	Filter(channel uint8) uint8
}

// ChannelFilterFunc adapts a plain function
type ChannelFilterFunc func(channel uint8) uint8

func (f ChannelFilterFunc) Filter(channel uint8) uint8 { return f(channel) }

// Identity keeps channels unchanged
var Identity ChannelFilter = ChannelFilterFunc(func(channel uint8) uint8 { return channel })

// Mono folds every channel onto channel 0
var Mono ChannelFilter = ChannelFilterFunc(func(uint8) uint8 { return 0 })

// RemapFilter moves the listed channels; others pass through
type RemapFilter map[uint8]uint8

func (r RemapFilter) Filter(channel uint8) uint8 {
	if to, ok := r[channel]; ok {
		return to
	}
	return channel
}

var (
	filtersMu sync.RWMutex
	filters   = map[string]ChannelFilter{
		"identity": Identity,
		"mono":     Mono,
	}
)

// RegisterFilter makes a filter selectable by name (call at startup)
func RegisterFilter(name string, f ChannelFilter) {
	filtersMu.Lock()
	defer filtersMu.Unlock()
	filters[name] = f
}

// LookupFilter returns the named filter
func LookupFilter(name string) (ChannelFilter, bool) {
	filtersMu.RLock()
	defer filtersMu.RUnlock()
	f, ok := filters[name]
	return f, ok
}

// FilterNames lists registered filters, sorted
func FilterNames() []string {
	filtersMu.RLock()
	defer filtersMu.RUnlock()
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
