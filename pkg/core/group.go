package core

import "time"

// DefaultGroupColor is the display hint applied when a group is created without one.
const DefaultGroupColor = "#4A90E2"

// Group is a named container node in the annotation hierarchy.
// ParentGroupID is empty for root groups. The parent relation always forms
// a forest: no group is its own ancestor.
type Group struct {
	ID            string
	Name          string
	Description   string
	Color         string
	ParentGroupID string
	CreatedAt     time.Time
}

// GroupNode is a group with its resolved children, as returned by hierarchy queries.
type GroupNode struct {
	Group
	Children []*GroupNode
}
