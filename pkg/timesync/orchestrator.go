package timesync

import (
	"time"

	"github.com/golang/glog"

	fx "github.com/duetlab/dash.go/pkg/framework"
)

// TextFetcher is the text-protocol fallback strategy.
type TextFetcher interface {
	Fetch() (time.Time, error)
}

// Config carries the tunables of the sync cycle. Fallback ordering is
// data: fast addresses are consumed in order, then the resolved name,
// then the text hosts.
type Config struct {
	// FastAddrs are pre-resolved known-good time service addresses
	// ("ip:123"), tried before any name resolution.
	FastAddrs []string
	// PoolName is the canonical time-service name for the resolved
	// query.
	PoolName string

	// LinkTimeout bounds the link bring-up. Defaults to 7s.
	LinkTimeout time.Duration
	// ReplyTimeout bounds each wait for a query reply. Defaults to
	// 1200ms.
	ReplyTimeout time.Duration
	// ResolveTimeout bounds the name resolution step. Defaults to
	// 2500ms.
	ResolveTimeout time.Duration
	// TextTimeout bounds the whole text-fallback step. Defaults to 6s.
	TextTimeout time.Duration
	// ResyncInterval is the periodic re-sync schedule. Defaults to 6h.
	ResyncInterval time.Duration
	// RetryBudget is the number of datagram attempts after the first
	// before falling back to the text protocol. Defaults to 2.
	RetryBudget int
}

func (c Config) withDefaults() Config {
	if len(c.FastAddrs) == 0 {
		c.FastAddrs = []string{"162.159.200.1:123", "216.239.35.0:123"}
	}
	if c.PoolName == "" {
		c.PoolName = "pool.ntp.org"
	}
	if c.LinkTimeout == 0 {
		c.LinkTimeout = 7 * time.Second
	}
	if c.ReplyTimeout == 0 {
		c.ReplyTimeout = 1200 * time.Millisecond
	}
	if c.ResolveTimeout == 0 {
		c.ResolveTimeout = 2500 * time.Millisecond
	}
	if c.TextTimeout == 0 {
		c.TextTimeout = 6 * time.Second
	}
	if c.ResyncInterval == 0 {
		c.ResyncInterval = 6 * time.Hour
	}
	if c.RetryBudget == 0 {
		c.RetryBudget = 2
	}
	return c
}

// attempt is the ephemeral record of one sync cycle. It is reset on
// every entry to StateIdle.
type attempt struct {
	deadline      time.Time
	retries       int
	fastIdx       int
	resolved      string
	usingResolved bool
}

type resolveResult struct {
	addr string
	err  error
}

type textResult struct {
	t   time.Time
	err error
}

// Orchestrator sequences one sync cycle: link-up, datagram attempts
// with fallback ordering and bounded retries, text fallback, teardown
// and reschedule. All methods must be called from the loop thread;
// Tick advances the state machine by at most one transition and never
// blocks.
type Orchestrator struct {
	Link     NetLink
	Resolver Resolver
	Text     TextFetcher
	Store    *Store

	cfg Config

	state SyncState
	att   attempt
	sock  Datagram

	// nextDue is the scheduled re-sync deadline in loop time; zero
	// while a cycle is in flight.
	nextDue time.Time

	pending       bool
	pendingManual bool

	resolveCh chan resolveResult
	textCh    chan textResult
}

// New creates an Orchestrator.
func New(link NetLink, resolver Resolver, text TextFetcher, store *Store, cfg Config) *Orchestrator {
	return &Orchestrator{
		Link:     link,
		Resolver: resolver,
		Text:     text,
		Store:    store,
		cfg:      cfg.withDefaults(),
	}
}

// State returns the current cycle state.
func (o *Orchestrator) State() SyncState {
	return o.state
}

// NextDue returns the scheduled re-sync deadline; zero while a cycle
// is in flight or after a failed cycle left it unset.
func (o *Orchestrator) NextDue() time.Time {
	return o.nextDue
}

// Request asks for a sync cycle. A request while a cycle is in flight
// is ignored. A non-manual request with an already-plausible clock
// only advances the schedule on the next tick and performs no network
// activity.
func (o *Orchestrator) Request(manual bool) {
	if o.state != StateIdle {
		return
	}
	o.pending = true
	o.pendingManual = o.pendingManual || manual
}

// AddToLoop implements LoopAdder.
func (o *Orchestrator) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvControl, o)
}

// Control implements Controller.
func (o *Orchestrator) Control(cc fx.ControlContext) error {
	o.Tick(cc.Time())
	return nil
}

// Tick advances the state machine by at most one transition.
func (o *Orchestrator) Tick(now time.Time) {
	switch o.state {
	case StateIdle:
		o.tickIdle(now)
	case StateStarting:
		o.tickStarting(now)
	case StateAwaitingLink:
		o.tickAwaitingLink(now)
	case StateFastQuery:
		o.tickFastQuery(now)
	case StateResolvingName:
		o.tickResolvingName(now)
	case StateSendingQuery:
		o.tickSendingQuery(now)
	case StateAwaitingQueryReply:
		o.tickAwaitingReply(now)
	case StateTextFallback:
		o.tickTextFallback(now)
	}
}

func (o *Orchestrator) tickIdle(now time.Time) {
	if o.pending {
		manual := o.pendingManual
		o.pending, o.pendingManual = false, false
		if !manual && Plausible(o.Store.Clock.Now()) {
			// Already synchronized: advance the schedule, skip
			// the network entirely.
			o.nextDue = now.Add(o.cfg.ResyncInterval)
			glog.V(1).Infof("sync skipped, clock plausible, next due %s", o.nextDue.Format(time.RFC3339))
			return
		}
		o.begin()
		return
	}
	if !o.nextDue.IsZero() && !now.Before(o.nextDue) {
		o.begin()
	}
}

func (o *Orchestrator) begin() {
	o.nextDue = time.Time{}
	o.att = attempt{}
	o.state = StateStarting
	glog.V(1).Info("sync cycle starting")
}

func (o *Orchestrator) tickStarting(now time.Time) {
	if err := o.Link.Begin(); err != nil {
		glog.Warningf("link begin: %v", err)
		o.finish(now, false)
		return
	}
	o.att.deadline = now.Add(o.cfg.LinkTimeout)
	o.state = StateAwaitingLink
}

func (o *Orchestrator) tickAwaitingLink(now time.Time) {
	switch o.Link.Status() {
	case LinkUp:
		sock, err := o.Link.OpenDatagram()
		if err != nil {
			glog.Warningf("open datagram: %v", err)
			o.finish(now, false)
			return
		}
		o.sock = sock
		o.state = StateFastQuery
	case LinkFailed:
		glog.Warningf("sync: %v", ErrLinkUnavailable)
		o.finish(now, false)
	default:
		if now.After(o.att.deadline) {
			glog.Warningf("sync: %v (deadline)", ErrLinkUnavailable)
			o.finish(now, false)
		}
	}
}

func (o *Orchestrator) tickFastQuery(now time.Time) {
	if o.att.fastIdx >= len(o.cfg.FastAddrs) {
		o.state = StateResolvingName
		return
	}
	addr := o.cfg.FastAddrs[o.att.fastIdx]
	o.att.fastIdx++
	o.att.usingResolved = false
	if err := o.sock.Send(addr, BuildQuery()); err != nil {
		// Next tick tries the next fast address.
		glog.V(1).Infof("fast query %s: %v", addr, err)
		return
	}
	o.att.deadline = now.Add(o.cfg.ReplyTimeout)
	o.state = StateAwaitingQueryReply
	glog.V(2).Infof("fast query sent to %s", addr)
}

func (o *Orchestrator) tickResolvingName(now time.Time) {
	if o.resolveCh == nil {
		ch := make(chan resolveResult, 1)
		o.resolveCh = ch
		o.att.deadline = now.Add(o.cfg.ResolveTimeout)
		name := o.cfg.PoolName
		resolver := o.Resolver
		go func() {
			addr, err := resolver.Resolve(name)
			ch <- resolveResult{addr: addr, err: err}
		}()
		return
	}
	select {
	case res := <-o.resolveCh:
		o.resolveCh = nil
		if res.err != nil {
			glog.V(1).Infof("resolve %s: %v", o.cfg.PoolName, res.err)
			o.state = StateTextFallback
			return
		}
		o.att.resolved = res.addr
		o.state = StateSendingQuery
	default:
		if now.After(o.att.deadline) {
			o.resolveCh = nil
			glog.V(1).Infof("resolve %s: deadline expired", o.cfg.PoolName)
			o.state = StateTextFallback
		}
	}
}

func (o *Orchestrator) tickSendingQuery(now time.Time) {
	o.att.usingResolved = true
	if err := o.sock.Send(o.att.resolved, BuildQuery()); err != nil {
		glog.V(1).Infof("query %s: %v", o.att.resolved, err)
		o.state = StateTextFallback
		return
	}
	o.att.deadline = now.Add(o.cfg.ReplyTimeout)
	o.state = StateAwaitingQueryReply
	glog.V(2).Infof("query sent to %s", o.att.resolved)
}

func (o *Orchestrator) tickAwaitingReply(now time.Time) {
	frame, err := o.sock.Recv()
	if err != nil {
		glog.V(1).Infof("recv: %v", err)
		o.queryFailed()
		return
	}
	if frame != nil {
		t, perr := ParseReply(frame)
		if perr != nil {
			// Malformed reply: discard the candidate and proceed
			// to the next fallback step.
			glog.V(1).Infof("reply rejected: %v", perr)
			o.queryFailed()
			return
		}
		if !o.Store.Validate(t) {
			glog.V(1).Infof("candidate %s outside sanity window", t.Format(time.RFC3339))
			o.queryFailed()
			return
		}
		o.Store.Apply(t)
		o.Store.Persist(t)
		o.finish(now, true)
		return
	}
	if now.After(o.att.deadline) {
		glog.V(1).Info("query reply timeout")
		o.queryFailed()
	}
}

// queryFailed advances the fallback ordering after a timed-out,
// malformed or rejected datagram attempt.
func (o *Orchestrator) queryFailed() {
	o.att.retries++
	if o.att.retries > o.cfg.RetryBudget {
		o.state = StateTextFallback
		return
	}
	if o.att.usingResolved {
		o.state = StateSendingQuery
		return
	}
	// FastQuery falls through to ResolvingName by itself once the
	// fixed list is exhausted.
	o.state = StateFastQuery
}

func (o *Orchestrator) tickTextFallback(now time.Time) {
	if o.textCh == nil {
		ch := make(chan textResult, 1)
		o.textCh = ch
		o.att.deadline = now.Add(o.cfg.TextTimeout)
		fetcher := o.Text
		go func() {
			t, err := fetcher.Fetch()
			ch <- textResult{t: t, err: err}
		}()
		return
	}
	select {
	case res := <-o.textCh:
		o.textCh = nil
		if res.err != nil {
			glog.Warningf("all time sources exhausted: %v", res.err)
			o.finish(now, false)
			return
		}
		if !o.Store.Validate(res.t) {
			glog.Warningf("text candidate %s outside sanity window", res.t.Format(time.RFC3339))
			o.finish(now, false)
			return
		}
		o.Store.Apply(res.t)
		o.Store.Persist(res.t)
		o.finish(now, true)
	default:
		if now.After(o.att.deadline) {
			o.textCh = nil
			glog.Warning("text fallback deadline expired")
			o.finish(now, false)
		}
	}
}

// finish tears down cycle-owned resources on every exit path and
// returns to StateIdle. Success reschedules the next cycle; failure
// arms the default schedule floor so the next periodic trigger
// retries.
func (o *Orchestrator) finish(now time.Time, success bool) {
	if o.sock != nil {
		o.sock.Close()
		o.sock = nil
	}
	o.Link.Down()
	o.resolveCh = nil
	o.textCh = nil
	o.att = attempt{}
	o.state = StateIdle
	o.nextDue = now.Add(o.cfg.ResyncInterval)
	if success {
		glog.Infof("sync cycle complete, next due %s", o.nextDue.Format(time.RFC3339))
	} else {
		glog.V(1).Infof("sync cycle failed, retry after %s", o.cfg.ResyncInterval)
	}
}
