/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package entity

// Node is one entity in the association tree. A node owns its children;
// the parent link is for upward lookup only.
type Node struct {
	entity            Entity
	parent            *Node
	children          []*Node
	association       AssociationType
	remote            bool
	remoteContainerID uint16
}

// Entity returns the node's entity with its local container id.
func (n *Node) Entity() Entity { return n.entity }

// Parent returns the containing node, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the node's children in insertion order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)

	return out
}

// AssociationType is the association the node was added under.
func (n *Node) AssociationType() AssociationType { return n.association }

// Remote reports whether the node was merged from a remote terminus.
func (n *Node) Remote() bool { return n.remote }

// RemoteContainerID is the container id the remote terminus used for this
// entity. For local nodes it equals the local container id.
func (n *Node) RemoteContainerID() uint16 { return n.remoteContainerID }

// AddOptions controls how AddEntity places a node.
type AddOptions struct {
	// Remote marks the node as merged from the host.
	Remote bool
	// ReassignContainer gives the node a container id from the tree's own
	// namespace instead of keeping the one it arrived with.
	ReassignContainer bool
}

// Tree is a rooted forest of entity nodes.
type Tree struct {
	roots           []*Node
	lastContainerID uint16
	size            int
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// Roots returns the parentless nodes in insertion order.
func (t *Tree) Roots() []*Node {
	out := make([]*Node, len(t.roots))
	copy(out, t.roots)

	return out
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return t.size }

// AddEntity inserts e under parent (or as a root when parent is nil). It
// returns nil if parent already has a child with the same identity, which
// makes repeated merges of the same association idempotent.
func (t *Tree) AddEntity(e Entity, parent *Node, assoc AssociationType, opts AddOptions) *Node {
	node := &Node{
		entity:      e,
		parent:      parent,
		association: assoc,
		remote:      opts.Remote,
	}

	if parent == nil {
		node.entity.ContainerID = 0
		node.remoteContainerID = e.ContainerID

		if !opts.Remote {
			node.remoteContainerID = 0
		}

		t.roots = append(t.roots, node)
		t.size++

		return node
	}

	if parent.hasChild(e) {
		return nil
	}

	switch {
	case opts.Remote && !opts.ReassignContainer:
		node.entity.ContainerID = e.ContainerID
	case len(parent.children) > 0:
		node.entity.ContainerID = parent.children[0].entity.ContainerID
	default:
		node.entity.ContainerID = t.nextContainerID()
	}

	if opts.Remote {
		node.remoteContainerID = e.ContainerID
	} else {
		node.remoteContainerID = node.entity.ContainerID
	}

	if c := MaskContainer(node.entity.ContainerID); c > t.lastContainerID {
		t.lastContainerID = c
	}

	parent.children = append(parent.children, node)
	t.size++

	return node
}

func (t *Tree) nextContainerID() uint16 {
	t.lastContainerID++

	return t.lastContainerID
}

func (n *Node) hasChild(e Entity) bool {
	for _, c := range n.children {
		if c.entity.Type != e.Type || c.entity.Instance != e.Instance {
			continue
		}

		want := MaskContainer(e.ContainerID)
		if MaskContainer(c.remoteContainerID) == want || MaskContainer(c.entity.ContainerID) == want {
			return true
		}
	}

	return false
}

// Walk visits every node depth-first in insertion order. Returning false
// from fn stops the walk.
func (t *Tree) Walk(fn func(n *Node) bool) {
	for _, r := range t.roots {
		if !walk(r, fn) {
			return
		}
	}
}

func walk(n *Node, fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}

	for _, c := range n.children {
		if !walk(c, fn) {
			return false
		}
	}

	return true
}

// Find returns the first node whose local identity matches e.
func (t *Tree) Find(e Entity) *Node {
	var found *Node

	t.Walk(func(n *Node) bool {
		if n.entity.Same(e) {
			found = n
			return false
		}

		return true
	})

	return found
}

// FindWithLocality looks e up, disambiguating between a locally rooted and
// a remotely merged copy of the same type and instance. A remote node
// matches on the container id the host used for it; a local node matches
// on its own container id. When both exist the preferred locality wins;
// a remote node that only matches by its reassigned local container id is
// the last resort.
func (t *Tree) FindWithLocality(e Entity, preferRemote bool) *Node {
	var remoteExact, local, remoteLocal *Node

	want := MaskContainer(e.ContainerID)

	t.Walk(func(n *Node) bool {
		if n.entity.Type != e.Type || n.entity.Instance != e.Instance {
			return true
		}

		switch {
		case n.remote && MaskContainer(n.remoteContainerID) == want:
			if remoteExact == nil {
				remoteExact = n
			}
		case !n.remote && MaskContainer(n.entity.ContainerID) == want:
			if local == nil {
				local = n
			}
		case n.remote && MaskContainer(n.entity.ContainerID) == want:
			if remoteLocal == nil {
				remoteLocal = n
			}
		}

		return true
	})

	order := []*Node{local, remoteExact, remoteLocal}
	if preferRemote {
		order = []*Node{remoteExact, local, remoteLocal}
	}

	for _, n := range order {
		if n != nil {
			return n
		}
	}

	return nil
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	out := &Tree{lastContainerID: t.lastContainerID, size: t.size}
	for _, r := range t.roots {
		out.roots = append(out.roots, cloneNode(r, nil))
	}

	return out
}

func cloneNode(n, parent *Node) *Node {
	c := &Node{
		entity:            n.entity,
		parent:            parent,
		association:       n.association,
		remote:            n.remote,
		remoteContainerID: n.remoteContainerID,
	}

	for _, child := range n.children {
		c.children = append(c.children, cloneNode(child, c))
	}

	return c
}

// Equal reports whether two trees have the same shape and node contents.
func Equal(a, b *Tree) bool {
	if a.size != b.size || len(a.roots) != len(b.roots) {
		return false
	}

	for i := range a.roots {
		if !equalNode(a.roots[i], b.roots[i]) {
			return false
		}
	}

	return true
}

func equalNode(a, b *Node) bool {
	if a.entity != b.entity ||
		a.association != b.association ||
		a.remote != b.remote ||
		a.remoteContainerID != b.remoteContainerID ||
		len(a.children) != len(b.children) {
		return false
	}

	for i := range a.children {
		if !equalNode(a.children[i], b.children[i]) {
			return false
		}
	}

	return true
}
