package engine

// NbrEvent is one of the events RFC 2328 §10.3's neighbor state machine
// reacts to.
type NbrEvent int

const (
	EvHelloReceived NbrEvent = iota
	EvStart               // NBMA only: manually start polling a neighbor
	Ev2WayReceived
	EvNegotiationDone
	EvExchangeDone
	EvBadLSReq
	EvLoadingDone
	EvAdjOK
	EvSeqNumberMismatch
	Ev1WayReceived
	EvKillNbr
	EvInactivityTimer
	EvLLDown
)

func (e NbrEvent) String() string {
	names := [...]string{
		"HelloReceived", "Start", "2-WayReceived", "NegotiationDone",
		"ExchangeDone", "BadLSReq", "LoadingDone", "AdjOK?",
		"SeqNumberMismatch", "1-WayReceived", "KillNbr", "InactivityTimer",
		"LLDown",
	}
	if int(e) < len(names) {
		return names[e]
	}
	return "Unknown"
}

// fireNbrEvent drives nbr's state machine for event ev, per RFC 2328 §10.3's
// transition table. r is needed because several transitions have side
// effects that reach beyond the neighbor: re-running DR election, flooding
// a fresh router-LSA, or tearing down retransmission state.
func (r *Router) fireNbrEvent(nbr *Neighbor, ev NbrEvent) {
	from := nbr.State
	switch ev {
	case EvHelloReceived:
		r.resetInactivityTimer(nbr)
		if nbr.State <= NbrAttempt {
			nbr.State = NbrInit
		}

	case EvStart:
		nbr.State = NbrAttempt
		r.sendHello(nbr.Iface, nbr.Address)

	case Ev2WayReceived:
		if nbr.State < NbrTwoWay {
			if IsAdjacencyEligible(nbr.Iface, nbr) && r.adjacencySlotFree() {
				r.beginExStart(nbr)
			} else {
				nbr.State = NbrTwoWay
			}
		}

	case EvNegotiationDone:
		if nbr.State == NbrExStart {
			nbr.State = NbrExchange
			r.buildDBSummary(nbr)
		}

	case EvExchangeDone:
		if nbr.State == NbrExchange {
			if len(nbr.lsRequestList) == 0 {
				nbr.State = NbrFull
				r.onNeighborFull(nbr)
			} else {
				nbr.State = NbrLoading
				r.sendLSRequest(nbr)
			}
		}

	case EvLoadingDone:
		if nbr.State == NbrLoading {
			nbr.State = NbrFull
			r.onNeighborFull(nbr)
		}

	case EvAdjOK:
		r.reconsiderAdjacency(nbr)

	case EvSeqNumberMismatch, EvBadLSReq:
		if nbr.State >= NbrExchange {
			r.resetAdjacency(nbr)
			r.beginExStart(nbr)
		}

	case Ev1WayReceived:
		if nbr.State >= NbrTwoWay {
			r.resetAdjacency(nbr)
			nbr.State = NbrInit
		}

	case EvKillNbr, EvInactivityTimer, EvLLDown:
		r.resetAdjacency(nbr)
		nbr.State = NbrDown
		nbr.DDSequence = 0
		if ev != EvKillNbr {
			r.scheduleDRElection(nbr.Iface)
		}
	}

	if nbr.State != from {
		r.metrics.NeighborTransition(nbr.State.String())
		r.log.Debug("neighbor state change",
			"neighbor", nbr.RouterID.String(),
			"interface", nbr.Iface.PhyInt,
			"event", ev.String(),
			"from", from.String(),
			"to", nbr.State.String(),
		)
		if from == NbrFull || nbr.State == NbrFull {
			r.scheduleSPF()
		}
	}
}

// resetAdjacency clears everything accumulated while forming or holding an
// adjacency: DD exchange state, retransmission lists, request lists.
func (r *Router) resetAdjacency(nbr *Neighbor) {
	nbr.lsRequestList = nil
	nbr.dbSummaryList = nil
	for k := range nbr.lsRetransmit {
		delete(nbr.lsRetransmit, k)
	}
	nbr.rxmtTimer.Cancel()
	nbr.ddRxmtTimer.Cancel()
	nbr.lsuRxmtTimer.Cancel()
}
