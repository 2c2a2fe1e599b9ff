//go:build amd64

package bufferpool

// cacheLineSize is the padding budget added to each Descriptor so that two
// descriptors never share a cache line.
const cacheLineSize = 64
