package providers

import (
	"github.com/socialnet/socket/src/bridge"
	"github.com/socialnet/socket/src/presence"
	"github.com/socialnet/socket/src/service"
	"github.com/socialnet/socket/src/types"
)

// Compile-time interface assertions.
var (
	_ types.Conn        = (*wsConn)(nil)
	_ types.Pinger      = (*wsConn)(nil)
	_ bridge.Bridge     = (*bridge.RedisIngest)(nil)
	_ bridge.Dispatcher = (*service.Service)(nil)
	_ presence.Registry = (*presence.MemoryRegistry)(nil)
)
