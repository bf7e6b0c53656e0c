package storage

// Underflow of a non-root node. The node's only entry is going away, so it
// either merges into an adjacent sibling through the parent divider or
// takes one entry over from that sibling.
type underflow struct {
	node    *pathSlot
	parent  *pathSlot
	sibling *node
	left    bool   // sibling is to the left of node
	divKey  uint64 // parent divider between the two, used bit included
}

func (s *Store) rebalance(slots []pathSlot) error {
	u := underflow{
		node:   &slots[len(slots)-1],
		parent: &slots[len(slots)-2],
	}
	pn := u.parent
	nParent := pn.count()

	// Prefer the right sibling; the right-most child has none
	var iSib int
	if pn.iEntry == nParent {
		u.left = true
		pn.iEntry--
		iSib = pn.iEntry
	} else {
		iSib = pn.iEntry + 1
	}
	u.divKey = pn.key(pn.iEntry)

	sibOff := pn.rightChild()
	if iSib < nParent {
		sibOff = pn.child(iSib)
	}

	sib, err := s.loadNode(sibOff)
	if err != nil {
		return err
	}
	if sib.height() != u.node.height() {
		return s.corrupt("rebalance", ErrCorruptTree, "sibling %d height %d, node %d height %d", sibOff, sib.height(), u.node.off, u.node.height())
	}
	u.sibling = sib

	if !sib.full() {
		if err := s.merge(&u); err != nil {
			return err
		}
		if err := s.deleteKey(slots[:len(slots)-1]); err != nil {
			return err
		}
		return s.markAsUnused(u.node.off, len(u.node.payload))
	}
	return s.borrow(&u)
}
