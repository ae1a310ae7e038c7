// Copyright (c) 2025 BVK Chaitanya

package gobs

type JobData struct {
	ID       string
	Typename string
	Flags    uint64

	State string
}
