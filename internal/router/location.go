package router

// MemoryLocation is a Location held in memory. It behaves like a browser
// hash: setting the same value again does not notify.
type MemoryLocation struct {
	hash      string
	listeners []func(string)
	history   []string
}

func NewMemoryLocation(hash string) *MemoryLocation {
	return &MemoryLocation{hash: hash}
}

func (l *MemoryLocation) Hash() string { return l.hash }

func (l *MemoryLocation) SetHash(hash string) {
	if hash == l.hash {
		return
	}
	l.history = append(l.history, l.hash)
	l.hash = hash
	for _, fn := range l.listeners {
		fn(hash)
	}
}

func (l *MemoryLocation) Replace(hash string) { l.hash = hash }

func (l *MemoryLocation) OnChange(fn func(string)) {
	l.listeners = append(l.listeners, fn)
}

// Back returns to the previous hash like the browser back button, which
// fires a change event.
func (l *MemoryLocation) Back() bool {
	n := len(l.history)
	if n == 0 {
		return false
	}
	prev := l.history[n-1]
	l.history = l.history[:n-1]
	l.hash = prev
	for _, fn := range l.listeners {
		fn(prev)
	}
	return true
}
