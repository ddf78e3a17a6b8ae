package lightmap

// rectNode is a node of the guillotine allocator. A node is either split
// into two children or a leaf that is free or filled.
type rectNode struct {
	x, y, w, h int
	children   *[2]rectNode
	filled     bool
}

// allocate finds room for a w x h rectangle, splitting along the axis
// with more leftover space. Returns nil when nothing fits.
func (n *rectNode) allocate(w, h int) *rectNode {
	if n.children != nil {
		if r := n.children[0].allocate(w, h); r != nil {
			return r
		}
		return n.children[1].allocate(w, h)
	}
	if n.filled || n.w < w || n.h < h {
		return nil
	}
	if n.w == w && n.h == h {
		n.filled = true
		return n
	}

	if n.w-w > n.h-h {
		n.children = &[2]rectNode{
			{x: n.x, y: n.y, w: w, h: n.h},
			{x: n.x + w, y: n.y, w: n.w - w, h: n.h},
		}
	} else {
		n.children = &[2]rectNode{
			{x: n.x, y: n.y, w: n.w, h: h},
			{x: n.x, y: n.y + h, w: n.w, h: n.h - h},
		}
	}
	return n.children[0].allocate(w, h)
}
