// Package image holds the sparse address->byte mapping produced from an
// Intel HEX file and the TransferPlan that walks it in ascending block
// order to drive the flashing and verification passes.
//
// An Image is a set of contiguous "blocks", each identified by its
// starting flash address; writing and verifying never need a single
// flat buffer (only a whole-flash read-back is accumulated into one
// block) — the target's own address cursor is resynced
// with FLASH_SET_ADDRESS whenever a block boundary forces a jump.
package image
