// Package idgen produces time-ordered opaque identifiers.
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

type Generator interface {
	NewID() string
}

type SnowflakeGenerator struct {
	node *snowflake.Node
}

func NewSnowflake(nodeID int64) (*SnowflakeGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node %d: %w", nodeID, err)
	}
	return &SnowflakeGenerator{node: node}, nil
}

func (g *SnowflakeGenerator) NewID() string {
	return g.node.Generate().String()
}
