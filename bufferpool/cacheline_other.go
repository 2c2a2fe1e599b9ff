//go:build !amd64 && !arm64

package bufferpool

const cacheLineSize = 64
