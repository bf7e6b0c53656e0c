package storage

// borrow rotates one entry from the sibling through the parent. The
// divider comes down into the node and the sibling's nearest key goes up
// in its place.
func (s *Store) borrow(u *underflow) error {
	n, sib, pn := u.node, u.sibling, u.parent
	h := n.height()

	var child int64
	if u.left {
		last := sib.count() - 1
		if h > 1 {
			child = sib.rightChild()
			sib.setRightChild(sib.child(last))
		}
		pn.setKey(pn.iEntry, sib.key(last))
		sib.setCount(last)
	} else {
		if h > 1 {
			child = n.rightChild()
			n.setRightChild(sib.child(0))
		}
		pn.setKey(pn.iEntry, sib.key(0))
		sib.removeEntry(0)
	}
	n.setEntry(0, u.divKey, child)

	for _, m := range []*node{n.node, sib, pn.node} {
		if err := s.storeNode(m); err != nil {
			return err
		}
	}
	return nil
}
