package ingest

// Dedup remembers the most recently seen event ids. Once full, the oldest id
// is evicted first. It is owned by the ingest goroutine and is not safe for
// concurrent use.
type Dedup struct {
	ring []string
	next int
	full bool
	seen map[string]struct{}
}

// NewDedup returns a cache holding up to size ids.
func NewDedup(size int) *Dedup {
	if size <= 0 {
		size = DefaultDedupSize
	}
	return &Dedup{ring: make([]string, size), seen: make(map[string]struct{}, size)}
}

// Add records id and reports whether it was new.
func (d *Dedup) Add(id string) bool {
	if _, ok := d.seen[id]; ok {
		return false
	}
	if d.full {
		delete(d.seen, d.ring[d.next])
	}
	d.ring[d.next] = id
	d.seen[id] = struct{}{}
	d.next++
	if d.next == len(d.ring) {
		d.next = 0
		d.full = true
	}
	return true
}

// Len returns the number of ids currently held.
func (d *Dedup) Len() int { return len(d.seen) }
