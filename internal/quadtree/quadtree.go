// Package quadtree implements a fixed-depth quadtree over a 1024 unit square,
// stored as a flat arena of nodes addressed by index arithmetic.
//
// Node i has parent (i-1)/4 and children 4i+1..4i+4. Children are ordered
// (-x,-z), (+x,-z), (-x,+z), (+x,+z). Leaves sit at depth TreeDepth and are
// 8 units wide.
package quadtree

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Faultbox/midgard-details/pkg/math"
)

const (
	MaxSize    float32 = 1024 // root side length
	MinSize    float32 = 8    // leaf side length
	TreeDepth          = 7
	NodeCounts         = 0x5555 // (4^8-1)/3

	// LeafOffset is the number of nodes above leaf depth, the arena slot of
	// the first leaf.
	LeafOffset = (1<<(2*TreeDepth) - 1) / 3
)

const leafGrid = 1 << TreeDepth

// ErrNodeIndex is returned when restoring a node outside the arena.
var ErrNodeIndex = errors.New("quadtree node index out of range")

// Node is one quadtree cell and the range of instance data it owns.
type Node struct {
	Index     int
	Init      bool
	Center    math.Vec3
	Size      float32
	DataIndex int
	DataCount int
}

// Data is the instance store a tree indexes.
//
// Generate synthesizes the instances of a leaf cell, appends them and
// returns how many were added. Append copies the data range of a node of
// src into the receiver and returns the number of instances the node
// references.
type Data[T any] interface {
	Clear(clearPrototypes bool)
	Generate(center math.Vec3, size float32) int
	Append(src T, node Node) int
}

// Tree is a fixed-capacity quadtree over data of type T.
type Tree[T Data[T]] struct {
	nodes []Node
}

// New returns an empty tree.
func New[T Data[T]]() *Tree[T] {
	return &Tree[T]{nodes: make([]Node, NodeCounts)}
}

// Root returns the root node.
func (t *Tree[T]) Root() Node {
	return t.nodes[0]
}

// Node returns the node at index i.
func (t *Tree[T]) Node(i int) Node {
	return t.nodes[i]
}

// Parent returns the parent of n. The root is its own parent.
func (t *Tree[T]) Parent(n Node) Node {
	if n.Index == 0 {
		return t.nodes[0]
	}
	return t.nodes[(n.Index-1)/4]
}

// Children returns the four children of n. It panics for leaves.
func (t *Tree[T]) Children(n Node) [4]Node {
	var res [4]Node
	for i := range res {
		res[i] = t.nodes[n.Index*4+1+i]
	}
	return res
}

// NodeSize returns the side length of a node at depth.
func NodeSize(depth int) float32 {
	return float32(int(MaxSize) >> depth)
}

// LeafIndex maps a position to the arena slot of the leaf containing it.
// It reports false when pos lies outside the root square.
func (t *Tree[T]) LeafIndex(pos math.Vec3) (int, bool) {
	local := pos.Sub(t.nodes[0].Center)
	u := local.X/MaxSize + 0.5
	v := local.Z/MaxSize + 0.5
	if u < 0 || u > 1 || v < 0 || v > 1 {
		return 0, false
	}

	indexU := min(uint32(u*leafGrid), leafGrid-1)
	indexV := min(uint32(v*leafGrid), leafGrid-1)
	return LeafOffset + int(interleave(indexU, indexV)), true
}

// interleave merges the low TreeDepth bits of u and v, least significant
// level first, with each level contributing v*2+u.
func interleave(u, v uint32) uint32 {
	var index uint32
	mul := uint32(1)
	for i := 0; i < TreeDepth; i++ {
		bitU := u & 1
		bitV := v & 1
		u >>= 1
		v >>= 1
		index += mul * (bitV*2 + bitU)
		mul *= 4
	}
	return index
}

// FindDataNode returns the leaf containing pos.
func (t *Tree[T]) FindDataNode(pos math.Vec3) (Node, bool) {
	i, ok := t.LeafIndex(pos)
	if !ok {
		return Node{}, false
	}
	return t.nodes[i], true
}

// SearchAndFillQuadData appends into dst the data of every node of src
// overlapping the square of half-extent quadSize around center. Subtrees
// entirely inside the square are copied whole.
func (t *Tree[T]) SearchAndFillQuadData(dst, src T, center math.Vec3, quadSize float32) {
	query := r2.Box{
		Min: r2.Vec{X: float64(center.X - quadSize), Y: float64(center.Z - quadSize)},
		Max: r2.Vec{X: float64(center.X + quadSize), Y: float64(center.Z + quadSize)},
	}
	t.searchAndFill(dst, src, query, 0, 0)
}

func (t *Tree[T]) searchAndFill(dst, src T, query r2.Box, index, depth int) {
	node := t.nodes[index]
	half := float64(NodeSize(depth)) * 0.5
	cx, cz := float64(node.Center.X), float64(node.Center.Z)
	bounds := r2.Box{
		Min: r2.Vec{X: cx - half, Y: cz - half},
		Max: r2.Vec{X: cx + half, Y: cz + half},
	}

	if overlap(query, bounds).Empty() {
		return
	}

	include := true
	for _, corner := range bounds.Vertices() {
		if !query.Contains(corner) {
			include = false
			break
		}
	}

	if include || depth >= TreeDepth {
		dst.Append(src, node)
		return
	}

	for i := 0; i < 4; i++ {
		t.searchAndFill(dst, src, query, index*4+1+i, depth+1)
	}
}

// overlap returns the intersection of a and b; it is Empty when they only
// touch or are disjoint.
func overlap(a, b r2.Box) r2.Box {
	return r2.Box{
		Min: r2.Vec{X: max(a.Min.X, b.Min.X), Y: max(a.Min.Y, b.Min.Y)},
		Max: r2.Vec{X: min(a.Max.X, b.Max.X), Y: min(a.Max.Y, b.Max.Y)},
	}
}

func childCenters(center math.Vec3, depth int) [4]math.Vec3 {
	offset := NodeSize(depth) / 4
	return [4]math.Vec3{
		center.Add(math.Vec3{X: -offset, Z: -offset}),
		center.Add(math.Vec3{X: offset, Z: -offset}),
		center.Add(math.Vec3{X: -offset, Z: offset}),
		center.Add(math.Vec3{X: offset, Z: offset}),
	}
}

func (t *Tree[T]) setNode(index int, center math.Vec3, depth, dataIndex, dataCount int) {
	t.nodes[index] = Node{
		Index:     index,
		Init:      true,
		Center:    center,
		Size:      NodeSize(depth),
		DataIndex: dataIndex,
		DataCount: dataCount,
	}
}

// UpdateNode rebuilds the subtree at nodeIndex by synthesizing every leaf
// through data.Generate. Instances are appended in leaf order starting at
// dataIndex; it returns the number of instances under the node.
func (t *Tree[T]) UpdateNode(data T, nodeIndex, dataIndex int, center math.Vec3, depth int) int {
	dataCount := 0
	if depth < TreeDepth {
		for i, c := range childCenters(center, depth) {
			dataCount += t.UpdateNode(data, nodeIndex*4+1+i, dataIndex+dataCount, c, depth+1)
		}
	} else {
		dataCount = data.Generate(center, NodeSize(depth))
	}

	t.setNode(nodeIndex, center, depth, dataIndex, dataCount)
	return dataCount
}

// UpdateNodeFrom rebuilds the subtree at nodeIndex by copying, for every
// leaf, the data of the srcTree leaf under the same center.
func (t *Tree[T]) UpdateNodeFrom(data T, srcTree *Tree[T], srcData T, nodeIndex, dataIndex int, center math.Vec3, depth int) int {
	dataCount := 0
	if depth < TreeDepth {
		for i, c := range childCenters(center, depth) {
			dataCount += t.UpdateNodeFrom(data, srcTree, srcData, nodeIndex*4+1+i, dataIndex+dataCount, c, depth+1)
		}
	} else if srcNode, ok := srcTree.FindDataNode(center); ok && srcNode.Init {
		dataCount = data.Append(srcData, srcNode)
	}

	t.setNode(nodeIndex, center, depth, dataIndex, dataCount)
	return dataCount
}

// Create builds the tree around rootCenter, synthesizing all leaves.
func (t *Tree[T]) Create(data T, rootCenter math.Vec3) {
	t.UpdateNode(data, 0, 0, rootCenter, 0)
}

// Clear empties the instance arrays of data, keeping prototypes.
func (t *Tree[T]) Clear(data T) {
	data.Clear(false)
}

// Update rebuilds the tree from scratch when rootCenter moved or immediately
// is set. It reports whether a rebuild happened.
func (t *Tree[T]) Update(data T, rootCenter math.Vec3, immediately bool) bool {
	if !immediately && t.nodes[0].Init && rootCenter == t.nodes[0].Center {
		return false
	}
	t.Clear(data)
	t.UpdateNode(data, 0, 0, rootCenter, 0)
	return true
}

// UpdateFrom is Update copying leaves from an existing tree instead of
// synthesizing them.
func (t *Tree[T]) UpdateFrom(data T, rootCenter math.Vec3, srcTree *Tree[T], srcData T, immediately bool) bool {
	if !immediately && t.nodes[0].Init && rootCenter == t.nodes[0].Center {
		return false
	}
	t.Clear(data)
	t.UpdateNodeFrom(data, srcTree, srcData, 0, 0, rootCenter, 0)
	return true
}

// Nodes returns a copy of the initialized nodes.
func (t *Tree[T]) Nodes() []Node {
	var out []Node
	for _, n := range t.nodes {
		if n.Init {
			out = append(out, n)
		}
	}
	return out
}

// SetNodes resets the tree and restores nodes by their Index.
func (t *Tree[T]) SetNodes(nodes []Node) error {
	fresh := make([]Node, NodeCounts)
	for _, n := range nodes {
		if n.Index < 0 || n.Index >= NodeCounts {
			return fmt.Errorf("%w: %d", ErrNodeIndex, n.Index)
		}
		n.Init = true
		fresh[n.Index] = n
	}
	t.nodes = fresh
	return nil
}
