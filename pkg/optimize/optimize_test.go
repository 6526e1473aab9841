package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytePool(t *testing.T) {
	pool := NewBytePool(1024)
	buf := pool.Get()
	require.NotNil(t, buf)
	assert.Len(t, *buf, 1024)

	*buf = (*buf)[:10]
	pool.Put(buf)

	again := pool.Get()
	assert.Len(t, *again, 1024)
}

func TestBytePool_DropsShortBuffers(t *testing.T) {
	pool := NewBytePool(64)
	short := make([]byte, 8)

	assert.NotPanics(t, func() {
		pool.Put(&short)
		pool.Put(nil)
	})
	assert.Len(t, *pool.Get(), 64)
}

func TestRTPBuffers(t *testing.T) {
	buf := RTPBuffers.Get()
	defer RTPBuffers.Put(buf)
	assert.Len(t, *buf, MaxRTPPacket)
}
