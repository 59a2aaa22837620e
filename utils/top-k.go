package utils

// KeyCount pairs a key with its count
type KeyCount struct {
	Key   int
	Count int
}

// less orders by count, then by key descending so that among equal counts
// the smallest key ranks highest
func less(a, b KeyCount) bool {
	if a.Count != b.Count {
		return a.Count < b.Count
	}
	return a.Key > b.Key
}

// TopK returns the k entries with the largest counts, largest first. A
// min-heap of size k keeps memory bounded for large maps.
func TopK(counts map[int]int, k int) []KeyCount {
	if k <= 0 || len(counts) == 0 {
		return []KeyCount{}
	}
	if k > len(counts) {
		k = len(counts)
	}

	heap := make([]KeyCount, 0, k)
	for key, count := range counts {
		kc := KeyCount{Key: key, Count: count}
		if len(heap) < k {
			heap = append(heap, kc)
			siftUp(heap, len(heap)-1)
			continue
		}
		if less(heap[0], kc) {
			heap[0] = kc
			siftDown(heap, 0)
		}
	}

	// pop ascending, fill from the back
	result := make([]KeyCount, len(heap))
	for i := len(heap) - 1; i >= 0; i-- {
		result[i] = heap[0]
		last := len(heap) - 1
		heap[0] = heap[last]
		heap = heap[:last]
		siftDown(heap, 0)
	}
	return result
}

func siftUp(h []KeyCount, i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !less(h[i], h[parent]) {
			break
		}
		h[i], h[parent] = h[parent], h[i]
		i = parent
	}
}

func siftDown(h []KeyCount, root int) {
	end := len(h) - 1
	for {
		child := root*2 + 1
		if child > end {
			return
		}
		if child+1 <= end && less(h[child+1], h[child]) {
			child++
		}
		if !less(h[child], h[root]) {
			return
		}
		h[root], h[child] = h[child], h[root]
		root = child
	}
}
