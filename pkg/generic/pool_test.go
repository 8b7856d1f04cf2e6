package generic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_ResetOnPut(t *testing.T) {
	p := NewHotPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset, 2)

	buf := p.Get()
	buf.WriteString("frame")
	p.Put(buf)

	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, 0, p.Get().Len())
}

func TestPool_Generate(t *testing.T) {
	calls := 0
	p := NewPool(func() []byte {
		calls++
		return make([]byte, 0, 64)
	})
	b := p.Get()
	assert.Equal(t, 64, cap(b))
	assert.GreaterOrEqual(t, calls, 1)
}
