// Package pool builds the keyword pool by breadth-first expansion over
// similar-keyword edges returned by the keyword data API.
package pool

// frontier is a FIFO of keywords discovered but not yet fetched, with a
// visited set so a keyword is only ever enqueued once. It satisfies the
// batch packer's queue interface.
type frontier struct {
	items   []string
	visited map[string]struct{}
}

func newFrontier() *frontier {
	return &frontier{visited: make(map[string]struct{})}
}

// Push enqueues keyword if it has never been seen. Returns true when the
// keyword was actually enqueued.
func (f *frontier) Push(keyword string) bool {
	if _, seen := f.visited[keyword]; seen {
		return false
	}
	f.visited[keyword] = struct{}{}
	f.items = append(f.items, keyword)
	return true
}

// Seen reports whether keyword was ever enqueued.
func (f *frontier) Seen(keyword string) bool {
	_, ok := f.visited[keyword]
	return ok
}

func (f *frontier) Len() int {
	return len(f.items)
}

func (f *frontier) Peek() (string, bool) {
	if len(f.items) == 0 {
		return "", false
	}
	return f.items[0], true
}

func (f *frontier) Pop() (string, bool) {
	if len(f.items) == 0 {
		return "", false
	}
	head := f.items[0]
	f.items = f.items[1:]
	return head, true
}
