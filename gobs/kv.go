// Copyright (c) 2025 BVK Chaitanya

package gobs

// KeyValue holds a raw database item for backup and restore.
type KeyValue struct {
	Key   string
	Value []byte
}
