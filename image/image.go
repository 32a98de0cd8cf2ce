package image

import "sort"

// Block is a maximal contiguous run of program bytes starting at Start.
type Block struct {
	Start uint32
	Data  []byte
}

// End returns the address one past the last byte of the block.
func (b Block) End() uint32 {
	return b.Start + uint32(len(b.Data))
}

// Image is a sparse address->byte mapping, exposed as an ascending,
// non-overlapping sequence of contiguous blocks.
type Image struct {
	blocks []Block
	lookup map[uint32]byte
}

// Builder accumulates sparse address->byte assignments (as produced by an
// Intel HEX reader) and coalesces them into an Image's contiguous blocks.
type Builder struct {
	bytes map[uint32]byte
}

// NewBuilder returns an empty image Builder.
func NewBuilder() *Builder {
	return &Builder{bytes: make(map[uint32]byte)}
}

// Set assigns a single byte at addr, overwriting any prior value.
func (b *Builder) Set(addr uint32, value byte) {
	b.bytes[addr] = value
}

// Build coalesces the accumulated sparse bytes into ascending, maximal
// contiguous blocks and returns the resulting Image.
func (b *Builder) Build() *Image {
	addrs := make([]uint32, 0, len(b.bytes))
	for a := range b.bytes {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	img := &Image{lookup: b.bytes}
	var cur *Block
	for _, a := range addrs {
		if cur != nil && a == cur.Start+uint32(len(cur.Data)) {
			cur.Data = append(cur.Data, b.bytes[a])
			continue
		}
		if cur != nil {
			img.blocks = append(img.blocks, *cur)
		}
		cur = &Block{Start: a, Data: []byte{b.bytes[a]}}
	}
	if cur != nil {
		img.blocks = append(img.blocks, *cur)
	}
	return img
}

// NewFlat builds a single-block Image starting at start from a flat byte
// slice — used for the whole-flash read-back result, which has no gaps.
func NewFlat(start uint32, data []byte) *Image {
	lookup := make(map[uint32]byte, len(data))
	for i, v := range data {
		lookup[start+uint32(i)] = v
	}
	return &Image{
		blocks: []Block{{Start: start, Data: data}},
		lookup: lookup,
	}
}

// Blocks returns the image's blocks in ascending start-address order.
// The caller must not mutate the returned slice's backing Data.
func (img *Image) Blocks() []Block {
	return img.blocks
}

// At looks up the byte stored at addr. ok is false if the image has no
// byte at that address.
func (img *Image) At(addr uint32) (value byte, ok bool) {
	value, ok = img.lookup[addr]
	return value, ok
}

// Len returns the total number of bytes across all blocks.
func (img *Image) Len() int {
	n := 0
	for _, blk := range img.blocks {
		n += len(blk.Data)
	}
	return n
}
