package engine

import (
	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine/timers"
)

// localOptions is the Options byte this router advertises in Hello/DD
// packets: the E-bit (external routing capability) set whenever any
// externally redistributed route is configured (RFC 2328 §A.2).
func (r *Router) localOptions() uint8 {
	if len(r.externalRoutes) > 0 {
		return ospf.OptionE
	}
	return 0
}

// beginExStart starts Database Exchange (RFC 2328 §10.6): elect
// master/slave by comparing router IDs and send the first, empty DD packet
// declaring this router's chosen role.
func (r *Router) beginExStart(nbr *Neighbor) {
	nbr.State = NbrExStart
	// Both sides claim master until negotiation resolves it by router ID
	// (RFC 2328 §10.8); Master here means "this router is the master".
	nbr.Master = r.id > nbr.RouterID
	if nbr.DDSequence == 0 {
		nbr.DDSequence = uint32(r.nextSeq())
	}
	r.sendExStartDD(nbr)
}

func (r *Router) sendExStartDD(nbr *Neighbor) {
	dd := &ospf.DatabaseDescription{
		InterfaceMTU:   nbr.Iface.MTU,
		Options:        r.localOptions(),
		Flags:          ospf.DDBitMS | ospf.DDBitM | ospf.DDBitI,
		SequenceNumber: nbr.DDSequence,
	}
	r.sendOSPF(nbr.Iface, ospf.PacketDBD, dd, nbr.Address)
	r.armDDRxmt(nbr)
}

// armDDRxmt schedules retransmission of the last-sent DD packet if no reply
// arrives within RxmtInterval (RFC 2328 §10.8). Only the master (and either
// side during ExStart) retransmits; the slave just re-answers duplicates.
func (r *Router) armDDRxmt(nbr *Neighbor) {
	nbr.ddRxmtTimer.Cancel()
	nbr.ddRxmtTimer = r.timers.After(r.nowMillis(), timers.Milliseconds(int64(nbr.Iface.RxmtInterval)*1000), func(timers.Milliseconds) {
		switch {
		case nbr.State == NbrExStart:
			r.sendExStartDD(nbr)
		case nbr.State == NbrExchange && nbr.Master:
			r.resendLastDD(nbr)
		}
	})
}

// resendLastDD retransmits the most recent DD packet verbatim.
func (r *Router) resendLastDD(nbr *Neighbor) {
	if nbr.lastSentDD == nil {
		return
	}
	r.sendOSPF(nbr.Iface, ospf.PacketDBD, nbr.lastSentDD, nbr.Address)
	r.armDDRxmt(nbr)
}

// buildDBSummary populates nbr's database summary send queue from every LSDB
// in scope for nbr's area (RFC 2328 §10.3, ExStart->Exchange), then sends the
// first packet's worth. The master advances the DD sequence for its first
// Exchange packet; the slave echoes the sequence it conceded to.
func (r *Router) buildDBSummary(nbr *Neighbor) {
	a := nbr.Iface.Area
	nbr.dbSummaryList = nil
	for _, lsa := range a.LSDB.All() {
		nbr.dbSummaryList = append(nbr.dbSummaryList, lsa.Header)
	}
	for _, lsa := range r.asExternalDB.All() {
		if a.Stub {
			continue
		}
		nbr.dbSummaryList = append(nbr.dbSummaryList, lsa.Header)
	}
	if nbr.Master {
		nbr.DDSequence++
	}
	r.sendNextDBSummary(nbr)
}

const dbSummaryBatch = 32

// sendNextDBSummary sends a DD packet carrying the next batch of nbr's
// database summary list at the neighbor's current sequence number (RFC 2328
// §10.8). The master increments DDSequence before calling; the slave sends
// at the master's echoed sequence.
func (r *Router) sendNextDBSummary(nbr *Neighbor) {
	batch := nbr.dbSummaryList
	more := false
	if len(batch) > dbSummaryBatch {
		batch = batch[:dbSummaryBatch]
		more = true
	}
	nbr.dbSummaryList = nbr.dbSummaryList[len(batch):]

	dd := &ospf.DatabaseDescription{
		InterfaceMTU:   nbr.Iface.MTU,
		Options:        r.localOptions(),
		SequenceNumber: nbr.DDSequence,
		LSAHeaders:     batch,
	}
	if more {
		dd.Flags |= ospf.DDBitM
	}
	if nbr.Master {
		dd.Flags |= ospf.DDBitMS
	}
	nbr.lastSentDD = dd
	r.sendOSPF(nbr.Iface, ospf.PacketDBD, dd, nbr.Address)
	r.armDDRxmt(nbr)
}

// receiveDBD implements RFC 2328 §10.6/§10.8's per-state handling of an
// incoming Database Description packet.
func (r *Router) receiveDBD(ifc *Interface, routerID ospf.RouterID, dd *ospf.DatabaseDescription) {
	nbr, ok := ifc.NeighborByID(routerID)
	if !ok || nbr.State < NbrInit {
		return
	}

	switch nbr.State {
	case NbrInit:
		r.fireNbrEvent(nbr, Ev2WayReceived)
		if nbr.State != NbrExStart {
			return
		}
		fallthrough

	case NbrExStart:
		peerClaimsMaster := dd.Flags&ospf.DDBitMS != 0
		init := dd.Flags&ospf.DDBitI != 0
		if init && peerClaimsMaster && routerID > r.id {
			// The neighbor outranks us: concede slave, adopt its sequence.
			nbr.Master = false
			nbr.DDSequence = dd.SequenceNumber
			r.fireNbrEvent(nbr, EvNegotiationDone)
		} else if !init && !peerClaimsMaster && dd.SequenceNumber == nbr.DDSequence && routerID < r.id {
			// The neighbor conceded slave by echoing our sequence.
			nbr.Master = true
			r.requestUnknownLSAs(nbr, dd.LSAHeaders)
			r.fireNbrEvent(nbr, EvNegotiationDone)
		}

	case NbrExchange:
		peerClaimsMaster := dd.Flags&ospf.DDBitMS != 0
		if peerClaimsMaster == nbr.Master {
			r.fireNbrEvent(nbr, EvSeqNumberMismatch)
			return
		}
		if nbr.Master {
			// The slave echoes our current sequence number.
			if dd.SequenceNumber != nbr.DDSequence {
				if dd.SequenceNumber == nbr.DDSequence-1 {
					return // duplicate of the previous response
				}
				r.fireNbrEvent(nbr, EvSeqNumberMismatch)
				return
			}
			r.requestUnknownLSAs(nbr, dd.LSAHeaders)
			if len(nbr.dbSummaryList) == 0 && dd.Flags&ospf.DDBitM == 0 {
				r.fireNbrEvent(nbr, EvExchangeDone)
			} else {
				nbr.DDSequence++
				r.sendNextDBSummary(nbr)
			}
		} else {
			// The master advances the sequence by exactly one per packet.
			if dd.SequenceNumber == nbr.DDSequence {
				r.resendLastDD(nbr) // our response was lost
				return
			}
			if dd.SequenceNumber != nbr.DDSequence+1 {
				r.fireNbrEvent(nbr, EvSeqNumberMismatch)
				return
			}
			nbr.DDSequence = dd.SequenceNumber
			r.requestUnknownLSAs(nbr, dd.LSAHeaders)
			masterDone := dd.Flags&ospf.DDBitM == 0
			r.sendNextDBSummary(nbr)
			if masterDone && len(nbr.dbSummaryList) == 0 {
				r.fireNbrEvent(nbr, EvExchangeDone)
			}
		}

	default: // Loading, Full: a retransmitted DD from the master is re-answered
		if dd.Flags&ospf.DDBitMS != 0 == nbr.Master {
			r.fireNbrEvent(nbr, EvSeqNumberMismatch)
			return
		}
		if !nbr.Master && dd.SequenceNumber == nbr.DDSequence {
			r.resendLastDD(nbr)
		}
	}
}

// requestUnknownLSAs appends to nbr's link state request list every summary
// entry for which our copy is missing or older (RFC 2328 §10.8).
func (r *Router) requestUnknownLSAs(nbr *Neighbor, headers []ospf.LSAHeader) {
	for _, h := range headers {
		scoped := r.dbOf(nbr.Iface.Area, h.Type)
		if scoped.IsNewer(&h) {
			nbr.lsRequestList = append(nbr.lsRequestList, ospf.LSRequestEntry{Type: h.Type, LSID: h.LSID, AdvRouter: h.AdvRouter})
		}
	}
}

// sendLSRequest transmits (or retransmits) a batch of nbr's outstanding link
// state requests (RFC 2328 §10.9, state Loading).
func (r *Router) sendLSRequest(nbr *Neighbor) {
	if len(nbr.lsRequestList) == 0 {
		r.fireNbrEvent(nbr, EvLoadingDone)
		return
	}
	batch := nbr.lsRequestList
	if len(batch) > dbSummaryBatch {
		batch = batch[:dbSummaryBatch]
	}
	req := &ospf.LinkStateRequest{Entries: batch}
	r.sendOSPF(nbr.Iface, ospf.PacketLSR, req, nbr.Address)

	nbr.rxmtTimer.Cancel()
	nbr.rxmtTimer = r.timers.After(r.nowMillis(), timers.Milliseconds(int64(nbr.Iface.RxmtInterval)*1000), func(timers.Milliseconds) {
		if nbr.State == NbrLoading {
			r.sendLSRequest(nbr)
		}
	})
}

// receiveLSR answers an incoming Link State Request with the full LSAs
// requested (RFC 2328 §10.7); a request for an LSA we don't have is a
// protocol error that tears down the adjacency.
func (r *Router) receiveLSR(ifc *Interface, routerID ospf.RouterID, req *ospf.LinkStateRequest) {
	nbr, ok := ifc.NeighborByID(routerID)
	if !ok || nbr.State < NbrExchange {
		return
	}
	upd := &ospf.LinkStateUpdate{}
	for _, e := range req.Entries {
		db := r.dbOf(ifc.Area, e.Type)
		lsa, ok := db.Lookup(ospf.LSAKey{Type: e.Type, LSID: e.LSID, AdvRouter: e.AdvRouter})
		if !ok {
			r.fireNbrEvent(nbr, EvBadLSReq)
			return
		}
		upd.LSAs = append(upd.LSAs, lsa)
	}
	if len(upd.LSAs) > 0 {
		r.sendOSPF(ifc, ospf.PacketLSU, upd, nbr.Address)
	}
}

// onNeighborFull handles the 2-Way/Loading -> Full transition: originate a
// fresh router-LSA (and network-LSA if we are DR) reflecting the new
// adjacency, and exit helper mode if we were one for this neighbor (RFC 3623
// §3's "adjacency reached Full during graceful restart" exit condition).
func (r *Router) onNeighborFull(nbr *Neighbor) {
	r.log.Info("adjacency full", "neighbor", nbr.RouterID.String(), "interface", nbr.Iface.PhyInt)
	r.releaseAdjacencySlot()
	if r.IsHelping(nbr) {
		r.ExitHelperMode(nbr)
	}
	r.originateRouterLSA(nbr.Iface.Area)
	if nbr.Iface.State == IfaceDR {
		r.originateNetworkLSA(nbr.Iface)
	}
	r.scheduleSPF()
}

// reconsiderAdjacency implements the AdjOK? event (RFC 2328 §10.3): a
// neighbor's eligibility for adjacency may have changed (DR/BDR election
// result, priority change); form or tear down the adjacency accordingly.
// An eligible neighbor stays in 2-Way while the database-exchange throttle
// is saturated; it gets another AdjOK once a slot frees up.
func (r *Router) reconsiderAdjacency(nbr *Neighbor) {
	eligible := IsAdjacencyEligible(nbr.Iface, nbr)
	switch {
	case nbr.State == NbrTwoWay && eligible && r.adjacencySlotFree():
		r.beginExStart(nbr)
	case nbr.State >= NbrExStart && !eligible:
		r.resetAdjacency(nbr)
		nbr.State = NbrTwoWay
	}
}

// SetMaxExchangeNeighbors caps how many neighbors may sit in Exchange or
// Loading simultaneously; zero removes the cap.
func (r *Router) SetMaxExchangeNeighbors(max int) {
	r.maxExchangeNbrs = max
}

// adjacencySlotFree reports whether another neighbor may enter database
// exchange under the configured throttle.
func (r *Router) adjacencySlotFree() bool {
	if r.maxExchangeNbrs <= 0 {
		return true
	}
	busy := 0
	for _, ifc := range r.ifaces {
		for _, n := range ifc.Neighbors() {
			if n.State >= NbrExStart && n.State < NbrFull {
				busy++
			}
		}
	}
	return busy < r.maxExchangeNbrs
}

// releaseAdjacencySlot offers a freed exchange slot to one eligible 2-Way
// neighbor, called whenever a neighbor leaves the Exchange/Loading window.
func (r *Router) releaseAdjacencySlot() {
	if r.maxExchangeNbrs <= 0 {
		return
	}
	for _, ifc := range r.ifaces {
		for _, n := range ifc.Neighbors() {
			if n.State == NbrTwoWay && IsAdjacencyEligible(ifc, n) {
				r.fireNbrEvent(n, EvAdjOK)
				return
			}
		}
	}
}
