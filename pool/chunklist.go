// File: pool/chunklist.go
// Package pool: chunk lists bucketed by usage percentage.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Chunks migrate between neighbouring lists as their usage crosses the
// list bounds. Allocation prefers fuller lists so wear spreads instead
// of concentrating on one fresh chunk.

package pool

type chunkList struct {
	arena    *Arena
	minUsage int
	maxUsage int

	head *chunk

	nextList *chunkList // toward higher usage
	prevList *chunkList // toward lower usage; nil means chunks may be destroyed
}

func newChunkList(a *Arena, minUsage, maxUsage int) *chunkList {
	return &chunkList{arena: a, minUsage: minUsage, maxUsage: maxUsage}
}

func (l *chunkList) add(c *chunk) {
	if c.usage() >= l.maxUsage && l.nextList != nil {
		l.nextList.add(c)
		return
	}
	c.list = l
	c.prev = nil
	c.next = l.head
	if l.head != nil {
		l.head.prev = c
	}
	l.head = c
}

func (l *chunkList) remove(c *chunk) {
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		l.head = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	}
	c.prev, c.next, c.list = nil, nil, nil
}

// allocateRun tries every chunk in the list for a normal run.
func (l *chunkList) allocateRun(normCap int) (*chunk, int) {
	for c := l.head; c != nil; c = c.next {
		if id := c.allocateNormal(normCap); id >= 0 {
			l.rebalanceAfterAlloc(c)
			return c, id
		}
	}
	return nil, -1
}

// allocateSubpage tries every chunk for a fresh subpage of the class.
func (l *chunkList) allocateSubpage(elemSize int, head *subpage) *subpage {
	for c := l.head; c != nil; c = c.next {
		if s := c.allocateSubpage(elemSize, head); s != nil {
			l.rebalanceAfterAlloc(c)
			return s
		}
	}
	return nil
}

func (l *chunkList) rebalanceAfterAlloc(c *chunk) {
	if c.usage() >= l.maxUsage && l.nextList != nil {
		l.remove(c)
		l.nextList.add(c)
	}
}

// rebalanceAfterFree migrates or destroys the chunk as usage drops.
// Reports false when the chunk was destroyed.
func (l *chunkList) rebalanceAfterFree(c *chunk) bool {
	u := c.usage()
	if u >= l.minUsage {
		return true
	}
	l.remove(c)
	if l.prevList != nil {
		l.prevList.add(c)
		return true
	}
	// lowest list: a fully drained chunk is released to the runtime
	if u > 0 {
		l.add(c)
		return true
	}
	return false
}
