package optimize

import "sync"

// MaxRTPPacket is the read size for one RTP packet on a typical MTU.
const MaxRTPPacket = 1500

// BytePool hands out fixed-size buffers, e.g. for reading remote RTP
// packets. Buffers are stored behind pointers so Put does not allocate.
type BytePool struct {
	pool sync.Pool
	size int
}

func NewBytePool(size int) *BytePool {
	p := &BytePool{size: size}
	p.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return p
}

// Get returns a buffer of exactly the pool size.
func (p *BytePool) Get() *[]byte {
	b := p.pool.Get().(*[]byte)
	*b = (*b)[:p.size]
	return b
}

// Put returns b to the pool. Buffers smaller than the pool size are dropped.
func (p *BytePool) Put(b *[]byte) {
	if b == nil || cap(*b) < p.size {
		return
	}
	p.pool.Put(b)
}

// RTPBuffers is shared by every remote track reader in the process.
var RTPBuffers = NewBytePool(MaxRTPPacket)
