package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Node IDs per binary. Two processes must never share a node.
const (
	ServerNode int64 = 1
	WorkerNode int64 = 2
)

var (
	node    *snowflake.Node
	once    sync.Once
	initErr error
)

// Init initializes the Snowflake node with the given node ID.
// Subsequent calls are no-ops and return the first result.
func Init(nodeID int64) error {
	once.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
	})
	return initErr
}

// New generates a new time-ordered int64 ID. Init must have been called.
func New() int64 {
	return node.Generate().Int64()
}
