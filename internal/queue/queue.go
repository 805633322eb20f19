package queue

import "slices"

// Item is a scored candidate.
type Item struct {
	ID    int     // ID is the candidate row.
	Score float32 // Score is the priority; higher is better.
}

// better reports whether a ranks ahead of b: higher score first, then lower id.
func better(a, b Item) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// TopK keeps the k best items seen so far.
//
// It is a value-based min-heap whose root is the worst retained item, so each
// candidate costs one comparison unless it displaces the root.
type TopK struct {
	k     int
	items []Item
}

// NewTopK creates a queue retaining at most k items.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, items: make([]Item, 0, k)}
}

// Len returns the number of retained items.
func (q *TopK) Len() int { return len(q.items) }

// Push offers an item to the queue.
func (q *TopK) Push(item Item) {
	if q.k == 0 {
		return
	}
	if len(q.items) < q.k {
		q.items = append(q.items, item)
		q.siftUp(len(q.items) - 1)
		return
	}
	if !better(item, q.items[0]) {
		return
	}
	q.items[0] = item
	q.siftDown(0)
}

// Worst returns the lowest-ranked retained item.
func (q *TopK) Worst() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Sorted returns the retained items best first and resets the queue.
func (q *TopK) Sorted() []Item {
	out := slices.Clone(q.items)
	slices.SortFunc(out, func(a, b Item) int {
		switch {
		case better(a, b):
			return -1
		case better(b, a):
			return 1
		default:
			return 0
		}
	})
	q.Reset()
	return out
}

// Reset clears the queue for reuse.
func (q *TopK) Reset() {
	q.items = q.items[:0]
}

// less orders the heap so the worst item sits at the root.
func (q *TopK) less(i, j int) bool {
	return better(q.items[j], q.items[i])
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
