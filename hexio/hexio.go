package hexio

import (
	"fmt"
	"io"

	"github.com/unixdj/ihex"

	"github.com/canflash/canflash/image"
)

// FromHex parses an Intel HEX file from r into an Image. The file's
// address width (8/16/32-bit records) is auto-detected.
func FromHex(r io.Reader) (*image.Image, error) {
	ix := &ihex.IHex{Format: ihex.FormatAuto}
	if err := ix.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("hexio: parse: %w", err)
	}

	b := image.NewBuilder()
	for _, chunk := range ix.Chunks {
		for i, v := range chunk.Data {
			b.Set(chunk.Addr+uint32(i), v)
		}
	}
	return b.Build(), nil
}

// ToHex writes img to w as a 32-bit-format Intel HEX file, one record
// run per image block.
func ToHex(img *image.Image, w io.Writer) error {
	ix := &ihex.IHex{Format: ihex.Format32Bit}
	for _, blk := range img.Blocks() {
		ix.Chunks = append(ix.Chunks, ihex.Chunk{Addr: blk.Start, Data: blk.Data})
	}
	if err := ix.WriteTo(w); err != nil {
		return fmt.Errorf("hexio: write: %w", err)
	}
	return nil
}
