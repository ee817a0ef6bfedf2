package solver

// blockVector holds the live blocks. Removal swaps with the last element.
type blockVector struct {
	blocks []*block
}

func (bv *blockVector) add(b *block) {
	b.vectorIndex = len(bv.blocks)
	bv.blocks = append(bv.blocks, b)
}

func (bv *blockVector) remove(b *block) {
	last := len(bv.blocks) - 1
	idx := b.vectorIndex
	if idx != last {
		bv.blocks[idx] = bv.blocks[last]
		bv.blocks[idx].vectorIndex = idx
	}
	bv.blocks[last] = nil
	bv.blocks = bv.blocks[:last]
	b.vectorIndex = -1
}

func (bv *blockVector) len() int { return len(bv.blocks) }
