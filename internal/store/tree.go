// internal/store/tree.go
package store

import (
	"github.com/waymark3d/waymark/pkg/core"
)

// Tree owns the group records and their parent/child structure. The parent
// relation always forms a forest; the Store guarantees parents exist before
// insertion, so the tree never re-verifies cycle freedom.
// It holds no lock of its own; the Store serializes access.
type Tree struct {
	records  map[string]*core.Group
	children map[string][]string // parent id -> child ids, insertion order; "" holds roots
	order    []string            // live ids in insertion order
}

// NewTree creates an empty group tree.
func NewTree() *Tree {
	return &Tree{
		records:  make(map[string]*core.Group),
		children: make(map[string][]string),
	}
}

// Insert registers a group under its id. The id must not be in use and the
// parent, when set, must already be present.
func (t *Tree) Insert(g core.Group) {
	rec := g
	t.records[g.ID] = &rec
	t.children[g.ParentGroupID] = append(t.children[g.ParentGroupID], g.ID)
	t.order = append(t.order, g.ID)
}

// Get returns a copy of the group, if present.
func (t *Tree) Get(id string) (core.Group, bool) {
	rec, ok := t.records[id]
	if !ok {
		return core.Group{}, false
	}
	return *rec, true
}

// Has reports whether the id is present.
func (t *Tree) Has(id string) bool {
	_, ok := t.records[id]
	return ok
}

// List returns copies of all groups in insertion order.
func (t *Tree) List() []core.Group {
	out := make([]core.Group, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.records[id])
	}
	return out
}

// Roots returns the root groups in insertion order.
func (t *Tree) Roots() []core.Group {
	return t.childGroups("")
}

// ChildrenOf returns the direct children of the group in insertion order.
func (t *Tree) ChildrenOf(id string) []core.Group {
	return t.childGroups(id)
}

func (t *Tree) childGroups(parent string) []core.Group {
	ids := t.children[parent]
	out := make([]core.Group, 0, len(ids))
	for _, id := range ids {
		out = append(out, *t.records[id])
	}
	return out
}

// HasChildren reports whether the group has at least one direct child.
func (t *Tree) HasChildren(id string) bool {
	return len(t.children[id]) > 0
}

// Descendants returns every group id below the given group, depth first,
// excluding the group itself.
func (t *Tree) Descendants(id string) []string {
	var out []string
	stack := append([]string(nil), t.children[id]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		stack = append(stack, t.children[cur]...)
	}
	return out
}

// Remove deletes a single group. The caller must ensure it has no children.
func (t *Tree) Remove(id string) bool {
	rec, ok := t.records[id]
	if !ok {
		return false
	}
	t.detach(rec.ParentGroupID, id)
	delete(t.children, id)
	delete(t.records, id)
	t.dropFromOrder(map[string]bool{id: true})
	return true
}

// RemoveSubtree deletes the group and all of its descendants, returning the
// removed ids with the subtree root first.
func (t *Tree) RemoveSubtree(id string) []string {
	rec, ok := t.records[id]
	if !ok {
		return nil
	}
	removed := append([]string{id}, t.Descendants(id)...)
	t.detach(rec.ParentGroupID, id)

	gone := make(map[string]bool, len(removed))
	for _, rid := range removed {
		gone[rid] = true
		delete(t.records, rid)
		delete(t.children, rid)
	}
	t.dropFromOrder(gone)
	return removed
}

func (t *Tree) detach(parent, id string) {
	ids := t.children[parent]
	for i, cid := range ids {
		if cid == id {
			t.children[parent] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

func (t *Tree) dropFromOrder(gone map[string]bool) {
	kept := t.order[:0]
	for _, id := range t.order {
		if !gone[id] {
			kept = append(kept, id)
		}
	}
	t.order = kept
}

// Hierarchy builds the full forest: one pass allocating a node per group,
// one pass in insertion order attaching each node under its parent.
func (t *Tree) Hierarchy() []*core.GroupNode {
	nodes := make(map[string]*core.GroupNode, len(t.records))
	for id, rec := range t.records {
		nodes[id] = &core.GroupNode{Group: *rec}
	}

	var roots []*core.GroupNode
	for _, id := range t.order {
		n := nodes[id]
		if n.ParentGroupID == "" {
			roots = append(roots, n)
			continue
		}
		parent := nodes[n.ParentGroupID]
		parent.Children = append(parent.Children, n)
	}
	return roots
}

// Clear drops every group and returns how many were removed.
func (t *Tree) Clear() int {
	n := len(t.records)
	t.records = make(map[string]*core.Group)
	t.children = make(map[string][]string)
	t.order = nil
	return n
}

// Len returns the number of live groups.
func (t *Tree) Len() int {
	return len(t.records)
}
