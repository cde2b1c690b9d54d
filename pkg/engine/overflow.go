package engine

// overflowState tracks the RFC 1765-style AS-external LSA ceiling: once
// the number of type-5 LSAs this router
// would originate exceeds a configured limit, origination is suspended
// until ExitOverflowInterval has elapsed since entry.
type overflowState struct {
	limit     int  // 0 means unlimited
	active    bool
	enteredAt Seconds
	exitAfter Seconds // ExitOverflowInterval, seconds
}

// enter transitions into overflow if not already there, recording when it
// happened so ready() can time the exit.
func (o *overflowState) enter(now Seconds) {
	if !o.active {
		o.active = true
		o.enteredAt = now
	}
}

// ready reports whether the overflow condition has cleared: either the
// router was never in overflow, or enough time has passed and the current
// external-route count (checked by the caller) is back under the limit.
func (o *overflowState) ready(now Seconds) bool {
	if !o.active {
		return true
	}
	return now-o.enteredAt >= o.exitAfter
}

// clear exits overflow state, invoked once ready() has been true and the
// caller has re-validated the route count is under the limit.
func (o *overflowState) clear() {
	o.active = false
}

// checkOverflow re-evaluates the overflow condition against the current
// number of externally redistributed routes, entering or clearing overflow
// and suspending/resuming type-5 origination as needed.
func (r *Router) checkOverflow() {
	if r.overflow.limit <= 0 {
		return
	}
	over := len(r.externalRoutes) > r.overflow.limit
	switch {
	case over && !r.overflow.active:
		r.overflow.enter(r.now)
		r.log.Warn("AS-external LSA limit exceeded, entering overflow",
			"limit", r.overflow.limit, "count", len(r.externalRoutes))
	case !over && r.overflow.active && r.overflow.ready(r.now):
		r.overflow.clear()
		r.log.Info("exiting AS-external LSA overflow")
	}
}

// InOverflow reports whether the router is currently suspending type-5
// origination, for the monitor's statistics query.
func (r *Router) InOverflow() bool { return r.overflow.active }

// SetASExternalLimit configures the type-5 ceiling and the interval after
// which a router in overflow re-attempts origination. limit 0 disables the ceiling.
func (r *Router) SetASExternalLimit(limit int, exitInterval Seconds) {
	r.overflow.limit = limit
	r.overflow.exitAfter = exitInterval
}

// exitOverflow leaves overflow once the exit interval has elapsed, provided
// the external-route count is back under the ceiling, and re-originates
// whatever type-5 LSAs were suppressed while in it. Still over the ceiling,
// the entry timestamp re-arms so the next attempt waits a full interval.
func (r *Router) exitOverflow() {
	if r.overflow.limit > 0 && len(r.externalRoutes) > r.overflow.limit {
		r.overflow.enteredAt = r.now
		return
	}
	r.overflow.clear()
	r.log.Info("exiting AS-external LSA overflow")
	for key := range r.externalRoutes {
		r.originateASExternal(key)
	}
}
