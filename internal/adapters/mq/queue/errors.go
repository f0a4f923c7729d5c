package queue

import "errors"

// Sentinel kinds for enqueue failures.
var (
	ErrQueueFull   = errors.New("refresh queue full")
	ErrQueueClosed = errors.New("refresh queue closed")
)
