// Package bridge implements the single-slot request/response handoff
// between the HTTP front-end and the JSON-RPC router: a capacity-1
// channel feeding a single dispatcher goroutine, so handler code never
// runs concurrently with itself — the one invariant the rest of the
// system is built around. The embedding host's tool handlers are written
// against a single-threaded editor API and must never see two requests
// at once.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mcphost/bridge/pkg/activity"
	"github.com/mcphost/bridge/pkg/logger"
	"github.com/mcphost/bridge/pkg/metrics"
	"github.com/mcphost/bridge/pkg/protocol"
)

// ResponseSizeCap is the compile-time cap on a response, inclusive of
// envelope. Responses at or above this size are replaced by a synthesized
// error envelope.
const ResponseSizeCap = 262144

// waitDeadline is how long a submitter blocks for a response before the
// dispatcher's wait path synthesizes a timeout envelope.
const waitDeadline = 30 * time.Second

// Router is the subset of *router.Router the dispatcher depends on,
// declared locally to avoid an import cycle between bridge and router.
type Router interface {
	Handle(ctx context.Context, body []byte) []byte
}

// job is one in-flight request moving through the single slot.
type job struct {
	body        []byte
	id          json.RawMessage
	method      string
	toolName    string
	argsSummary string
	requestID   string

	once   sync.Once
	result chan []byte
}

func newJob(body []byte) *job {
	id, method, tool, argsSummary := scanEnvelope(body)
	return &job{
		body:        body,
		id:          id,
		method:      method,
		toolName:    tool,
		argsSummary: argsSummary,
		requestID:   uuid.NewString(),
		result:      make(chan []byte, 1),
	}
}

// deliver sends resp to the waiting submitter exactly once; later callers
// (a tick that completes after a timeout already fired) are no-ops.
func (j *job) deliver(resp []byte) {
	j.once.Do(func() {
		j.result <- resp
	})
}

// Dispatcher owns the single pending slot, tracks the in-flight job so a
// registry reload can interrupt it, and invokes the router synchronously
// on each tick.
type Dispatcher struct {
	router   Router
	pending  chan *job
	inFlight atomic.Pointer[job]
	active   atomic.Bool
	activity *activity.Log
	metrics  *metrics.Metrics

	tickInterval time.Duration
	waitDeadline time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// New constructs a Dispatcher over the given router and activity log.
// activityLog may be nil to disable activity recording.
func New(rt Router, activityLog *activity.Log) *Dispatcher {
	return &Dispatcher{
		router:       rt,
		pending:      make(chan *job, 1),
		activity:     activityLog,
		tickInterval: 15 * time.Millisecond,
		waitDeadline: waitDeadline,
		stop:         make(chan struct{}),
	}
}

// SetWaitDeadline overrides the submitter wait deadline (default 30s); used
// by tests to exercise the timeout path without a 30-second sleep.
func (d *Dispatcher) SetWaitDeadline(dur time.Duration) {
	d.waitDeadline = dur
}

// SetMetrics attaches a Prometheus collector set; passing nil disables
// metrics recording. Safe to call before or after Start.
func (d *Dispatcher) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// Start begins the dispatcher's tick loop in the background: a single
// goroutine, so handler invocations are serialized.
func (d *Dispatcher) Start(ctx context.Context) {
	d.active.Store(true)
	d.wg.Add(1)
	go d.run(ctx)
}

// Stop deactivates polling and waits for the tick loop to exit.
func (d *Dispatcher) Stop() {
	d.active.Store(false)
	d.stopOnce.Do(func() { close(d.stop) })
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick is one pass of the dispatch sequence: poll the pending slot,
// invoke the router, enforce the size cap, deliver, record.
func (d *Dispatcher) tick(ctx context.Context) {
	if !d.active.Load() {
		return
	}

	var j *job
	select {
	case j = <-d.pending:
	default:
		return
	}

	d.inFlight.Store(j)
	if d.metrics != nil {
		d.metrics.SetInFlight(true)
	}
	logger.Debugf("bridge: dispatching request %s (method=%s)", j.requestID, j.method)
	start := time.Now()

	resp := d.invokeRouter(ctx, j)
	success := true
	detail := ""

	if len(resp) >= ResponseSizeCap {
		detail = fmt.Sprintf("response too large (%d bytes)", len(resp))
		success = false
		errResp := protocol.NewErrorResponse(j.id, protocol.CodeInternalError,
			fmt.Sprintf("Response too large (%d bytes). Maximum supported size is %d bytes. Try reducing depth or using more specific queries.",
				len(resp), ResponseSizeCap-1), nil)
		resp, _ = errResp.Marshal()
	} else {
		success = responseIndicatesSuccess(resp)
	}

	d.inFlight.Store(nil)
	if d.metrics != nil {
		d.metrics.SetInFlight(false)
	}
	j.deliver(resp)

	if j.toolName != "" && d.activity != nil {
		d.activity.Append(activity.Entry{
			RequestID:    j.requestID,
			Timestamp:    start,
			Tool:         j.toolName,
			Success:      success,
			Detail:       detail,
			Duration:     time.Since(start),
			ArgsSummary:  j.argsSummary,
			ResponseSize: len(resp),
		})
	}

	if d.metrics != nil {
		outcome := "success"
		if !success {
			outcome = "error"
		}
		method := j.method
		if method == "" {
			method = "unknown"
		}
		d.metrics.ObserveRequest(method, outcome, len(resp), time.Since(start).Seconds())
	}
}

// invokeRouter runs the router with a recover guard: the tick goroutine
// is the only dispatcher, so a panic that escaped the registries' own
// handler guard must become an error envelope rather than kill the
// process. Notifications (nil id) still emit no response bytes.
func (d *Dispatcher) invokeRouter(ctx context.Context, j *job) (resp []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("bridge: request handling panicked", "panic", r, "request_id", j.requestID)
			if j.id == nil {
				resp = nil
				return
			}
			errResp := protocol.NewErrorResponse(j.id, protocol.CodeInternalError,
				fmt.Sprintf("Internal error: %v", r), nil)
			resp, _ = errResp.Marshal()
		}
	}()
	return d.router.Handle(ctx, j.body)
}

// responseIndicatesSuccess reports whether resp's envelope carried a
// result rather than an error, for activity-log purposes only (it does not
// affect the bytes sent to the client).
func responseIndicatesSuccess(resp []byte) bool {
	var probe struct {
		Error *protocol.ErrorObject `json:"error"`
	}
	if err := json.Unmarshal(resp, &probe); err != nil {
		return false
	}
	return probe.Error == nil
}

// Submit hands a request body to the dispatcher and blocks for its
// response, or until waitDeadline elapses. A request that arrives while
// the slot is occupied parks on the channel send; connection-level
// queuing is the caller's concern, typically net/http's own connection
// handling.
func (d *Dispatcher) Submit(ctx context.Context, body []byte) []byte {
	if !d.active.Load() {
		return unavailableResponse(body)
	}

	j := newJob(body)

	select {
	case d.pending <- j:
	case <-ctx.Done():
		return unavailableResponse(body)
	}

	timer := time.NewTimer(d.waitDeadline)
	defer timer.Stop()

	select {
	case resp := <-j.result:
		return resp
	case <-timer.C:
		j.deliver(nil) // mark delivered so a late tick's send is a no-op
		logger.Warnf("bridge: request timed out waiting %s for a response", d.waitDeadline)
		resp := protocol.NewErrorResponse(protocol.NullID(), protocol.CodeInternalError,
			"Request timed out waiting for a response.", nil)
		raw, _ := resp.Marshal()
		return raw
	case <-ctx.Done():
		return unavailableResponse(body)
	}
}

// unavailableResponse synthesizes the envelope returned while intake is
// deactivated (mid-reload, or after Stop).
func unavailableResponse(body []byte) []byte {
	id, _, _, _ := scanEnvelope(body)
	if id == nil {
		id = protocol.NullID()
	}
	resp := protocol.NewErrorResponse(id, protocol.CodeInternalError,
		"Server is not currently accepting requests.", nil)
	raw, _ := resp.Marshal()
	return raw
}

// Interrupt synthesizes an error response for the in-flight job, if any:
// a registry rescan about to replace the tool/resource/prompt catalogs
// interrupts whatever request is mid-flight rather than let it race the
// rescan.
func (d *Dispatcher) Interrupt() {
	j := d.inFlight.Swap(nil)
	if j == nil {
		return
	}
	resp := protocol.NewErrorResponse(j.id, protocol.CodeInternalError,
		"Request interrupted by a registry reload. This is recoverable — wait 2-3 seconds and retry.", nil)
	raw, _ := resp.Marshal()
	j.deliver(raw)
}

// SetActive toggles polling without stopping the tick loop; used by a
// registry rescan to pause intake while it swaps catalogs.
func (d *Dispatcher) SetActive(active bool) {
	d.active.Store(active)
}

// NotifyReload is the registry-reload hook: it pauses intake and
// interrupts whatever request is mid-flight, so the caller can safely
// swap registry catalogs. The caller must re-enable intake with
// SetActive(true) once the swap completes.
func (d *Dispatcher) NotifyReload() {
	d.SetActive(false)
	d.Interrupt()
}
