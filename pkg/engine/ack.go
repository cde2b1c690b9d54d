package engine

import "github.com/ospfd/ospfd/internal/protocol/ospf"

// addRetransmit places lsa on nbr's retransmission list (RFC 2328 §13.3).
// It only tracks membership; the retransmit timer is armed separately by
// armLSURetransmit in flooding.go.
func (nbr *Neighbor) addRetransmit(lsa *ospf.LSA) {
	nbr.lsRetransmit[lsa.Header.Key()] = lsa
}

// removeFromRetransmission drops key from nbr's retransmission list,
// typically because an acknowledgment (explicit or implicit, via a newer
// instance) was received for it.
func (nbr *Neighbor) removeFromRetransmission(key ospf.LSAKey) {
	delete(nbr.lsRetransmit, key)
}

// requestListHas reports whether key is still outstanding on nbr's link
// state request list (state Loading), returning the stored header for
// sequence-number comparison.
func (nbr *Neighbor) requestListHas(key ospf.LSAKey) (ospf.LSRequestEntry, bool) {
	for _, e := range nbr.lsRequestList {
		if e.Type == key.Type && e.LSID == key.LSID && e.AdvRouter == key.AdvRouter {
			return e, true
		}
	}
	return ospf.LSRequestEntry{}, false
}
