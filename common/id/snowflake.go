// Package id allocates the int64 identifiers used for analyses. IDs are
// snowflakes, so they are time-ordered and an id minted by the API at
// submit time keys every table the worker later writes.
package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init configures the generator for this process. Server and worker
// binaries pass distinct node ids so concurrently minted ids never
// collide. Only the first call takes effect.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns the next analysis id. Init must have been called first.
func New() int64 {
	return node.Generate().Int64()
}
