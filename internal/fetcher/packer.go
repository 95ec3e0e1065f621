package fetcher

import (
	"encoding/json"
	"net/url"
)

// Transport budget for a batch: the URL-percent-encoded JSON array of
// keywords must stay under the hard limit.
const (
	SoftEncodedLimit = 400
	HardEncodedLimit = 500
	MaxBatchItems    = 50
)

// Queue is the minimal FIFO surface the packer consumes. The pool
// builder's frontier satisfies it.
type Queue interface {
	Len() int
	Peek() (string, bool)
	Pop() (string, bool)
}

// Packer builds request batches with a greedy first-fit policy: items are
// appended in discovery order until a limit is hit, then the batch is
// flushed. It never reorders and never drops.
type Packer struct {
	Soft     int
	Hard     int
	MaxItems int
}

// NewPacker returns a Packer with the transport budget defaults.
func NewPacker() Packer {
	return Packer{Soft: SoftEncodedLimit, Hard: HardEncodedLimit, MaxItems: MaxBatchItems}
}

// Next drains the front of q into one batch. A candidate whose inclusion
// would put the encoded length at or past the hard limit is left on the
// queue for the next batch, unless the batch is still empty, in which case
// the oversized item ships alone.
func (p Packer) Next(q Queue) []string {
	var batch []string
	for q.Len() > 0 && len(batch) < p.MaxItems {
		next, ok := q.Peek()
		if !ok {
			break
		}
		length := EncodedQueryLength(append(append([]string(nil), batch...), next))
		if length >= p.Hard {
			if len(batch) == 0 {
				q.Pop()
				return []string{next}
			}
			return batch
		}
		q.Pop()
		batch = append(batch, next)
		if length > p.Soft {
			break
		}
	}
	return batch
}

// PackAll splits items into successive batches. Flattening the result in
// order reproduces items exactly.
func (p Packer) PackAll(items []string) [][]string {
	q := &sliceQueue{items: append([]string(nil), items...)}
	var batches [][]string
	for q.Len() > 0 {
		batch := p.Next(q)
		if len(batch) == 0 {
			break
		}
		batches = append(batches, batch)
	}
	return batches
}

// EncodedQueryLength returns the length of the URL-percent-encoded compact
// JSON array representation of items, the unit both limits are defined in.
func EncodedQueryLength(items []string) int {
	return len(EncodeJSONArray(items))
}

// EncodeJSONArray renders items as a compact JSON array and percent-encodes
// it for use as a query parameter value.
func EncodeJSONArray(items []string) string {
	raw, err := json.Marshal(items)
	if err != nil {
		// A []string cannot fail to marshal.
		return ""
	}
	return url.QueryEscape(string(raw))
}

type sliceQueue struct {
	items []string
}

func (q *sliceQueue) Len() int {
	return len(q.items)
}

func (q *sliceQueue) Peek() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	return q.items[0], true
}

func (q *sliceQueue) Pop() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}
