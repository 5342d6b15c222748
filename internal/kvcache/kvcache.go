// Package kvcache holds per-layer attention keys and values for one session.
package kvcache

import (
	"errors"
	"fmt"
)

var ErrContextFull = errors.New("kvcache: context window full")

// Cache is a contiguous [layers][contextLen][dim] store for keys and values.
type Cache struct {
	layers     int
	contextLen int
	dim        int

	k [][]float32
	v [][]float32

	// used is the number of positions written by the deepest layer.
	used int
}

// Bytes returns the memory a cache with these dimensions needs, or -1 if the
// product overflows.
func Bytes(layers, contextLen, dim int) int64 {
	if layers <= 0 || contextLen <= 0 || dim <= 0 {
		return 0
	}
	n := int64(layers) * 2
	for _, f := range []int64{int64(contextLen), int64(dim), 4} {
		if n > (1<<62)/f {
			return -1
		}
		n *= f
	}
	return n
}

// New allocates a cache. The caller is expected to have checked Bytes
// against its memory budget first.
func New(layers, contextLen, dim int) (*Cache, error) {
	if layers <= 0 || contextLen <= 0 || dim <= 0 {
		return nil, fmt.Errorf("kvcache: invalid shape layers=%d context=%d dim=%d", layers, contextLen, dim)
	}
	c := &Cache{
		layers:     layers,
		contextLen: contextLen,
		dim:        dim,
		k:          make([][]float32, layers),
		v:          make([][]float32, layers),
	}
	for i := range layers {
		c.k[i] = make([]float32, contextLen*dim)
		c.v[i] = make([]float32, contextLen*dim)
	}
	return c, nil
}

// Store writes the key and value vectors for layer at pos.
func (c *Cache) Store(layer, pos int, k, v []float32) error {
	if c.k == nil {
		return errors.New("kvcache: cache released")
	}
	if layer < 0 || layer >= c.layers {
		return fmt.Errorf("kvcache: invalid layer index %d", layer)
	}
	if pos < 0 || pos >= c.contextLen {
		return fmt.Errorf("%w: position %d (size %d)", ErrContextFull, pos, c.contextLen)
	}
	if len(k) != c.dim || len(v) != c.dim {
		return fmt.Errorf("kvcache: vector length %d/%d, want %d", len(k), len(v), c.dim)
	}
	copy(c.k[layer][pos*c.dim:], k)
	copy(c.v[layer][pos*c.dim:], v)
	if layer == c.layers-1 && pos+1 > c.used {
		c.used = pos + 1
	}
	return nil
}

// Key returns the cached key vector for layer at pos.
func (c *Cache) Key(layer, pos int) []float32 {
	return c.k[layer][pos*c.dim : (pos+1)*c.dim]
}

// Value returns the cached value vector for layer at pos.
func (c *Cache) Value(layer, pos int) []float32 {
	return c.v[layer][pos*c.dim : (pos+1)*c.dim]
}

// Size returns the context length the cache was sized for.
func (c *Cache) Size() int { return c.contextLen }

// Used returns the number of fully written positions.
func (c *Cache) Used() int { return c.used }

// Bytes returns the allocated size of the cache.
func (c *Cache) Bytes() int64 { return Bytes(c.layers, c.contextLen, c.dim) }

// Reset forgets all positions without releasing memory.
func (c *Cache) Reset() { c.used = 0 }

// Free releases the backing storage. The cache is unusable afterwards.
func (c *Cache) Free() {
	c.k = nil
	c.v = nil
	c.used = 0
}
