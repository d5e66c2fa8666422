package registry

import "math/bits"

// KindSet is a bitmask of registry ids. The zero value is the empty set.
// Set and Clear may reallocate, so always use the returned value.
type KindSet []uint64

func (b KindSet) Set(id ID) KindSet {
	word, pos := int(id/64), id%64
	for len(b) <= word {
		b = append(b, 0)
	}
	b[word] |= 1 << pos
	return b
}

func (b KindSet) Clear(id ID) KindSet {
	word, pos := int(id/64), id%64
	if word < len(b) {
		b[word] &^= 1 << pos
	}
	return b
}

func (b KindSet) Has(id ID) bool {
	word, pos := int(id/64), id%64
	return word < len(b) && b[word]&(1<<pos) != 0
}

// Contains reports whether every id in required is also in b.
func (b KindSet) Contains(required KindSet) bool {
	for i, w := range required {
		if w == 0 {
			continue
		}
		if i >= len(b) || b[i]&w != w {
			return false
		}
	}
	return true
}

func (b KindSet) Len() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

func (b KindSet) Empty() bool {
	for _, w := range b {
		if w != 0 {
			return false
		}
	}
	return true
}

func (b KindSet) Clone() KindSet {
	if b == nil {
		return nil
	}
	out := make(KindSet, len(b))
	copy(out, b)
	return out
}

// Each calls fn for every id in ascending order.
func (b KindSet) Each(fn func(id ID)) {
	for wordIdx, word := range b {
		for word != 0 {
			pos := bits.TrailingZeros64(word)
			fn(ID(wordIdx*64 + pos))
			word &= word - 1
		}
	}
}
