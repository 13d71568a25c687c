package statestore

import "github.com/cyobiorah/go-social-connect/core"

var (
	_ core.StateStore = (*MemoryStore)(nil)
	_ core.StateStore = (*RedisStore)(nil)
)
