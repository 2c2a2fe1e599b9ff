//go:build arm64

package bufferpool

const cacheLineSize = 128
