package storage

// merge moves the parent divider into the sibling. The emptied node's
// right child goes with it, so no subtree is lost. The caller then deletes
// the divider from the parent and releases the node.
func (s *Store) merge(u *underflow) error {
	n, sib, pn := u.node, u.sibling, u.parent
	h := n.height()

	var child int64
	if u.left {
		if h > 1 {
			child = sib.rightChild()
			sib.setRightChild(n.rightChild())
		}
		sib.insertEntry(sib.count(), u.divKey, child)

		// The divider's entry is about to be deleted, its child is now the
		// right-most one
		pn.setRightChild(pn.child(pn.iEntry))
	} else {
		if h > 1 {
			child = n.rightChild()
		}
		sib.insertEntry(0, u.divKey, child)
	}

	s.log.Debugf("merge: node %d into sibling %d", n.off, sib.off)
	return s.storeNode(sib)
}
