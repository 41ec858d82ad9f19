package option

import (
	"fmt"

	"github.com/backkem/coap/pkg/message"
)

// Block option layout (RFC 7959 Section 2.2).
//
//	 0 1 2 3 4 5 6 7
//	+-+-+-+-+-+-+-+-+
//	|  NUM  |M| SZX |   (1 byte form; NUM grows to 12 or 20 bits)
//	+-+-+-+-+-+-+-+-+
const (
	blockMoreBit  = 0x08
	blockSZXMask  = 0x07
	blockNumShift = 4

	// MaxSZX is the largest legal size exponent (1024-byte blocks).
	// SZX 7 is reserved.
	MaxSZX uint8 = 6

	// MaxBlockNum is the largest block number a 3-byte value can carry.
	MaxBlockNum uint32 = 1<<20 - 1

	maxBlockValueLen = 3
)

// Block is a decoded Block1 or Block2 value.
type Block struct {
	// Num is the zero-based index of the block.
	Num uint32

	// More is set when further blocks follow.
	More bool

	// SZX encodes the block size as 2^(SZX+4).
	SZX uint8
}

// Size returns the block size in bytes.
func (b Block) Size() int {
	return 1 << (b.SZX + 4)
}

// Offset returns the byte offset of this block within the full body.
func (b Block) Offset() int {
	return int(b.Num) * b.Size()
}

// Next returns the descriptor requesting the following block at the same size.
func (b Block) Next() Block {
	return Block{Num: b.Num + 1, SZX: b.SZX}
}

// Value encodes the block in the minimal uint form.
func (b Block) Value() []byte {
	v := b.Num<<blockNumShift | uint32(b.SZX&blockSZXMask)
	if b.More {
		v |= blockMoreBit
	}
	return message.EncodeUint(v)
}

// Validate rejects the reserved size exponent and out-of-range block numbers.
func (b Block) Validate() error {
	if b.SZX > MaxSZX {
		return fmt.Errorf("%w: SZX %d", ErrInvalidBlock, b.SZX)
	}
	if b.Num > MaxBlockNum {
		return fmt.Errorf("%w: block number %d", ErrInvalidBlock, b.Num)
	}
	return nil
}

func (b Block) String() string {
	return fmt.Sprintf("%d/%t/%d", b.Num, b.More, b.Size())
}

// ParseBlock decodes a raw Block1/Block2 option value.
func ParseBlock(value []byte) (Block, error) {
	if len(value) > maxBlockValueLen {
		return Block{}, fmt.Errorf("%w: %d-byte value", ErrInvalidBlock, len(value))
	}
	v, err := message.DecodeUint(value)
	if err != nil {
		return Block{}, fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	b := Block{
		Num:  v >> blockNumShift,
		More: v&blockMoreBit != 0,
		SZX:  uint8(v & blockSZXMask),
	}
	if err := b.Validate(); err != nil {
		return Block{}, err
	}
	return b, nil
}

// Block2 returns the Block2 option of opts, if present.
func Block2(opts message.Options) (Block, bool, error) {
	return blockOption(opts, message.Block2)
}

// Block1 returns the Block1 option of opts, if present.
func Block1(opts message.Options) (Block, bool, error) {
	return blockOption(opts, message.Block1)
}

func blockOption(opts message.Options, id message.OptionID) (Block, bool, error) {
	value, ok := opts.GetFirst(id)
	if !ok {
		return Block{}, false, nil
	}
	b, err := ParseBlock(value)
	if err != nil {
		return Block{}, true, err
	}
	return b, true, nil
}

// SetBlock2 replaces the Block2 option of opts with b.
func SetBlock2(opts message.Options, b Block) message.Options {
	return opts.Set(message.Block2, b.Value())
}

// SZXForSize returns the largest size exponent whose block fits in n bytes.
// Sizes below 16 map to SZX 0, sizes above 1024 to MaxSZX.
func SZXForSize(n int) uint8 {
	szx := uint8(0)
	for szx < MaxSZX && 1<<(szx+5) <= n {
		szx++
	}
	return szx
}
