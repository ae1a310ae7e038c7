// Copyright (c) 2025 BVK Chaitanya

package gobs

type TelegramState struct {
	// UserChatIDMap remembers the chat id for each authorized user, so that
	// notifications can be pushed without waiting for the user to message the
	// bot first.
	UserChatIDMap map[string]int64
}
