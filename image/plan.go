package image

// WriteChunk is the next run of up to 4 image bytes to write, starting at
// Address. A chunk never crosses a block boundary.
type WriteChunk struct {
	Address uint32
	Data    []byte
}

// TransferPlan walks an Image's blocks in ascending order to drive a
// write pass, a verify pass, or a flat read-back accumulation. It is not
// safe for concurrent use; the session state machine is its only caller
// and drives it from a single goroutine.
type TransferPlan struct {
	img *Image

	// write cursor
	wBlockIdx int
	wOffset   int
	wDone     bool

	// verify cursor
	vBlockIdx int

	// read accumulator
	readStart  uint32
	readBuffer []byte
}

// NewTransferPlan returns a plan over img.
func NewTransferPlan(img *Image) *TransferPlan {
	return &TransferPlan{img: img}
}

// TotalWriteBytes returns the total number of image bytes a write pass
// will transfer, for progress reporting.
func (p *TransferPlan) TotalWriteBytes() int {
	return p.img.Len()
}

// BeginWrite resets the plan to the first block and offset 0.
func (p *TransferPlan) BeginWrite() {
	p.wBlockIdx = 0
	p.wOffset = 0
	p.wDone = len(p.img.Blocks()) == 0
}

// NextWriteChunk returns the next up-to-4-byte run of image data starting
// at the write cursor. done is true once every block has been consumed;
// in that case the zero WriteChunk is returned.
func (p *TransferPlan) NextWriteChunk() (chunk WriteChunk, done bool) {
	if p.wDone {
		return WriteChunk{}, true
	}
	blocks := p.img.Blocks()
	blk := blocks[p.wBlockIdx]
	remaining := len(blk.Data) - p.wOffset
	n := remaining
	if n > 4 {
		n = 4
	}
	addr := blk.Start + uint32(p.wOffset)
	return WriteChunk{Address: addr, Data: blk.Data[p.wOffset : p.wOffset+n]}, false
}

// AdvanceWrite records that the target confirmed n bytes written from the
// most recent NextWriteChunk, advancing the cursor across block
// boundaries as needed.
func (p *TransferPlan) AdvanceWrite(n int) {
	if p.wDone {
		return
	}
	p.wOffset += n
	blocks := p.img.Blocks()
	if p.wOffset >= len(blocks[p.wBlockIdx].Data) {
		p.wBlockIdx++
		p.wOffset = 0
		if p.wBlockIdx >= len(blocks) {
			p.wDone = true
		}
	}
}

// BeginVerify resets the plan's verify cursor to the image's first block.
func (p *TransferPlan) BeginVerify() {
	p.vBlockIdx = 0
}

// FirstVerifyAddress returns the starting address of the first block to
// verify. ok is false for an empty image.
func (p *TransferPlan) FirstVerifyAddress() (addr uint32, ok bool) {
	blocks := p.img.Blocks()
	if len(blocks) == 0 {
		return 0, false
	}
	return blocks[0].Start, true
}

// VerifyBlockEnd returns the address one past the end of the block
// currently being verified.
func (p *TransferPlan) VerifyBlockEnd() uint32 {
	return p.img.Blocks()[p.vBlockIdx].End()
}

// NextVerifyBlock advances the verify cursor to the next block and
// returns its starting address. ok is false once every block has been
// verified.
func (p *TransferPlan) NextVerifyBlock() (addr uint32, ok bool) {
	p.vBlockIdx++
	blocks := p.img.Blocks()
	if p.vBlockIdx >= len(blocks) {
		return 0, false
	}
	return blocks[p.vBlockIdx].Start, true
}

// ExpectVerifyByte looks up the image byte expected at addr. ok is false
// if addr is not present in the image, in which case the caller must
// skip verification for that address (spec invariant: absent addresses
// are never compared).
func (p *TransferPlan) ExpectVerifyByte(addr uint32) (value byte, ok bool) {
	return p.img.At(addr)
}

// BeginRead resets the flat read-back accumulator to start at addr.
func (p *TransferPlan) BeginRead(addr uint32) {
	p.readStart = addr
	p.readBuffer = p.readBuffer[:0]
}

// AppendReadByte appends b to the flat read-back buffer.
func (p *TransferPlan) AppendReadByte(b byte) {
	p.readBuffer = append(p.readBuffer, b)
}

// FinishRead coalesces the accumulated read-back bytes into a single
// image Block starting at the address passed to BeginRead.
func (p *TransferPlan) FinishRead() *Image {
	data := make([]byte, len(p.readBuffer))
	copy(data, p.readBuffer)
	return NewFlat(p.readStart, data)
}
