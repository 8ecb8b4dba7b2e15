// Package ident generates the opaque string identifiers used for waypoints
// and groups. Ids are stable, unique, and never derived from entity content.
package ident

import (
	"strings"

	"github.com/google/uuid"
)

// Prefixes keep ids self-describing in logs and exported documents.
const (
	WaypointPrefix = "wp"
	GroupPrefix    = "grp"
)

// suffixLen is the number of UUID hex characters kept after the prefix.
// 48 bits of randomness is plenty for collections in the thousands.
const suffixLen = 12

// New returns "<prefix>_<12 hex chars>" from a fresh random UUID.
func New(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + hex[:suffixLen]
}

// NewWaypointID returns a fresh waypoint id.
func NewWaypointID() string { return New(WaypointPrefix) }

// NewGroupID returns a fresh group id.
func NewGroupID() string { return New(GroupPrefix) }
