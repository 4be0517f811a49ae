package transport

import "sort"

// numberRange is an inclusive range of packet numbers [start, end].
type numberRange struct {
	start uint64
	end   uint64
}

// rangeSet is a sorted, non-overlapping, non-adjacent set of packet
// number ranges, used both for the received-packet-number history kept
// per packet-number space (for ACK generation, spec §4.3) and for the
// peer-advertised ack ranges decoded from an ACK frame.
//
// Ranges are kept in ascending order internally; ACK frames are
// generated by walking the set in descending order (largest first),
// matching the wire format (spec §4.3).
type rangeSet struct {
	ranges []numberRange
}

// push adds pn to the set, merging with adjacent/overlapping ranges.
func (s *rangeSet) push(pn uint64) {
	s.pushRange(pn, pn)
}

// pushRange adds [start, end] to the set.
func (s *rangeSet) pushRange(start, end uint64) {
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].end+1 >= start
	})
	if i == len(s.ranges) {
		s.ranges = append(s.ranges, numberRange{start, end})
		return
	}
	if s.ranges[i].start > end+1 {
		s.ranges = append(s.ranges, numberRange{})
		copy(s.ranges[i+1:], s.ranges[i:])
		s.ranges[i] = numberRange{start, end}
		return
	}
	if start < s.ranges[i].start {
		s.ranges[i].start = start
	}
	if end > s.ranges[i].end {
		s.ranges[i].end = end
	}
	// Merge with any following ranges now overlapping/adjacent.
	j := i + 1
	for j < len(s.ranges) && s.ranges[j].start <= s.ranges[i].end+1 {
		if s.ranges[j].end > s.ranges[i].end {
			s.ranges[i].end = s.ranges[j].end
		}
		j++
	}
	s.ranges = append(s.ranges[:i+1], s.ranges[j:]...)
}

// contains reports whether pn is already in the set (used for
// at-most-once receive processing / duplicate suppression).
func (s *rangeSet) contains(pn uint64) bool {
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].end >= pn
	})
	return i < len(s.ranges) && s.ranges[i].start <= pn
}

// largest returns the largest packet number in the set and true, or
// (0, false) if the set is empty.
func (s *rangeSet) largest() (uint64, bool) {
	if len(s.ranges) == 0 {
		return 0, false
	}
	last := s.ranges[len(s.ranges)-1]
	return last.end, true
}

// removeUntil discards all ranges/parts of ranges with end <= pn. Used
// once the peer's ACK has confirmed receipt of our own ACK up to pn, so
// we can bound how much ack state we keep re-sending (spec §4.3 ACK
// generation policy).
func (s *rangeSet) removeUntil(pn uint64) {
	i := 0
	for ; i < len(s.ranges); i++ {
		if s.ranges[i].end > pn {
			break
		}
	}
	if i == len(s.ranges) {
		s.ranges = s.ranges[:0]
		return
	}
	if s.ranges[i].start <= pn {
		s.ranges[i].start = pn + 1
	}
	s.ranges = s.ranges[i:]
}

func (s *rangeSet) empty() bool {
	return len(s.ranges) == 0
}

// limit drops the oldest ranges so no more than n remain, bounding
// ACK-frame size (spec §4.3).
func (s *rangeSet) limit(n int) {
	if len(s.ranges) > n {
		s.ranges = s.ranges[len(s.ranges)-n:]
	}
}
