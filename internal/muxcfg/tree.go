// Package muxcfg reads and writes the hierarchical, brace-nested,
// semicolon-commented configuration tree the multiplexer consumes for
// its ensemble/services/subchannels/components/outputs definitions.
// The grammar has no counterpart in any general-purpose config library;
// this is a small hand-written recursive-descent reader and writer.
package muxcfg

// Node is one key in the config tree. A leaf has a non-empty Value and
// no Children; a section has Children and an empty Value. Multiple
// siblings may share a Key (e.g. several "subchannels" entries), so
// Children is an ordered slice rather than a map.
type Node struct {
	Key      string
	Value    string
	Children []*Node
	Parent   *Node `json:"-"`
}

// NewRoot returns an empty root node. The root itself carries no key or
// value; it only ever holds Children.
func NewRoot() *Node {
	return &Node{}
}

// AddChild appends a new child node under n and returns it.
func (n *Node) AddChild(key, value string) *Node {
	child := &Node{Key: key, Value: value, Parent: n}
	n.Children = append(n.Children, child)
	return child
}

// Get returns the first direct child with the given key, or nil.
func (n *Node) Get(key string) *Node {
	for _, c := range n.Children {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// GetAll returns every direct child with the given key, in document
// order.
func (n *Node) GetAll(key string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Key == key {
			out = append(out, c)
		}
	}
	return out
}

// Set mutates the value of the first direct child with the given key,
// creating it if absent. This is the in-memory mutation applied to a
// tree before it is serialized with Write.
func (n *Node) Set(key, value string) {
	if child := n.Get(key); child != nil {
		child.Value = value
		return
	}
	n.AddChild(key, value)
}

// Path walks a sequence of keys (one per level) from n, returning every
// node reachable at that path (mirroring the original implementation's
// slash-path lookup across same-named siblings at each level).
func (n *Node) Path(path []string) []*Node {
	level := []*Node{n}
	for _, key := range path {
		var next []*Node
		for _, node := range level {
			next = append(next, node.GetAll(key)...)
		}
		level = next
	}
	return level
}
