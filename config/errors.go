package config

import "errors"

var (
	ErrInvalidPartitions     = errors.New("config: hot+cold+free percentages must sum to 100")
	ErrInvalidBufferPoolSize = errors.New("config: buffer pool pages must be positive")
	ErrInvalidFileSize       = errors.New("config: initial/auto-extend file size must be positive")
)
