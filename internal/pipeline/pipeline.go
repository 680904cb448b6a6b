package pipeline

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/headtrack/internal/flags"
	"github.com/banshee-data/headtrack/internal/mapping"
	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/reltrans"
	"gonum.org/v1/gonum/spatial/r3"
)

// Settings are the session options read by the cycle.
type Settings struct {
	// CenterAtStartup requests centering as soon as the tracker reports
	// its first non-zero sample.
	CenterAtStartup bool

	RelTransMode reltrans.Mode
	// RelTransDisable excludes translation channels (TX..TZ) from
	// compensation and source angles (Yaw..Roll) from its rotation.
	RelTransDisable pose.Mask

	NeckEnable bool
	// NeckZ is the distance in centimetres from the head to the neck pivot.
	NeckZ float64
}

// faultLogInterval bounds how often numerical faults are reported.
const faultLogInterval = 5 * time.Second

// Pipeline transforms tracker samples into output poses on a fixed period.
// All fields below the snapshot are owned by the worker goroutine.
type Pipeline struct {
	flags    *flags.Register
	table    *mapping.Table
	libs     Libraries
	events   EventHandler
	logger   TrackLogger
	settings Settings

	mu         sync.RWMutex
	outputPose pose.Pose
	rawPose    pose.Pose

	newPose         pose.Pose
	lastGood        pose.Pose // mapped pose before zeroing and offsets
	rel             *reltrans.Compensator
	real, scaled    rotationState
	tCenter         r3.Vec
	trackingStarted bool
	sched           scheduler
	faults          *monitoring.Throttle
	now             func() time.Time

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces time.Now for cycle timing and relative translation
// easing.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
		p.rel = reltrans.New(reltrans.WithClock(now))
	}
}

// New binds a pipeline to its mapping table, plugins, event handler and
// track logger. libs.Tracker is required; a nil table is the identity
// mapping and nil events, logger or protocol do nothing.
func New(table *mapping.Table, libs Libraries, events EventHandler, logger TrackLogger, settings Settings, opts ...Option) *Pipeline {
	if table == nil {
		table = mapping.DefaultTable()
	}
	if isNilInterface(events) {
		events = nopEvents{}
	}
	if isNilInterface(logger) {
		logger = nopLogger{}
	}
	if isNilInterface(libs.Protocol) {
		libs.Protocol = nopProtocol{}
	}
	p := &Pipeline{
		flags:    flags.NewRegister(),
		table:    table,
		libs:     libs,
		events:   events,
		logger:   logger,
		settings: settings,
		rel:      reltrans.New(),
		real:     newRotationState(1),
		scaled:   newRotationState(1.0 / scaledRotationFactor),
		faults:   monitoring.NewThrottle(faultLogInterval),
		now:      time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// stageRecord collects the per-stage poses written to the track log.
type stageRecord struct {
	raw, corrected, filtered pose.Pose
}

// cycleResult is the outcome of the fallible part of a cycle. When ok is
// false, fault names the check that failed and value and raw are unset.
type cycleResult struct {
	value, raw pose.Pose
	ok         bool
	fault      string
}

// logic runs one full cycle. It always completes: a numerical fault swaps
// in the last good mapped pose and the flags, protocol and snapshot are
// still updated.
func (p *Pipeline) logic() {
	p.logger.WriteDt()
	p.logger.ResetDt()

	var rec stageRecord
	res := p.compute(&rec)

	value, raw := res.value, res.raw
	if res.ok {
		p.lastGood = value
	} else {
		// the published pose already carries the zero offsets; restart
		// from the mapped value so they are applied once
		value = p.lastGood
		p.mu.RLock()
		raw = p.rawPose
		p.mu.RUnlock()

		// keep the curves' in-use indicators following the last raw values
		for i := range raw {
			_ = p.table.Map(raw[i], pose.Axis(i))
		}
		p.logFault(res.fault)
	}

	p.flags.Set(flags.Center, false)

	if p.flags.Get(flags.Zero) {
		value = pose.Pose{}
	}
	value = p.applyZeroPos(value)

	p.events.RunEvents(StageFinished, &value)
	p.libs.Protocol.Pose(value)

	p.mu.Lock()
	p.outputPose = value
	p.rawPose = raw
	p.mu.Unlock()

	p.logger.WritePose(rec.raw)
	p.logger.WritePose(rec.corrected)
	p.logger.WritePose(rec.filtered)
	p.logger.WritePose(value)
	p.logger.ResetDt()
	p.logger.NextLine()
}

func (p *Pipeline) compute(rec *stageRecord) cycleResult {
	// centering must be decided before pulling data from the tracker
	centerOrdered := p.flags.Get(flags.Center) && p.trackingStarted
	ownCenter := centerOrdered && p.libs.Tracker.Center()

	sample := p.libs.Tracker.Data()
	if !sample.IsFinite() {
		return cycleResult{fault: "raw"}
	}
	p.events.RunEvents(StageRaw, &sample)

	f := p.flags.Snapshot()
	if (f&flags.EnabledSource != 0) != (f&flags.EnabledHotkey == 0) {
		p.newPose = sample
	}

	raw, value, disabled := p.selectAxes(p.newPose)
	rec.raw = raw

	value = clampValue(value)

	p.maybeEnableCenterOnTrackingStarted()
	p.maybeSetCenterPose(value, ownCenter)
	value = p.applyCenter(value)
	rec.corrected = value

	p.events.RunEvents(StageBeforeFilter, &value)
	value = p.maybeApplyFilter(value)
	if !value.IsFinite() {
		return cycleResult{fault: "filter"}
	}
	rec.filtered = value

	p.events.RunEvents(StageBeforeMapping, &value)
	// rotation first: translation compensation needs mapped angles
	for i := pose.Yaw; i <= pose.Roll; i++ {
		value[i] = p.table.Map(value[i], i)
	}

	value = p.applyRelTrans(value, disabled)

	for i := pose.TX; i <= pose.TZ; i++ {
		value[i] = p.table.Map(value[i], i)
	}
	if !value.IsFinite() {
		return cycleResult{fault: "mapping"}
	}

	return cycleResult{value: value, raw: raw, ok: true}
}

func (p *Pipeline) logFault(stage string) {
	if ok, suppressed := p.faults.Allow(); ok {
		diagf("nan check failed in %s stage, reusing last pose (%d similar suppressed)", stage, suppressed)
	}
}

// selectAxes routes input channels to outputs according to the mapping
// table. It returns the untouched input, the routed pose and the mask of
// outputs with no source.
func (p *Pipeline) selectAxes(in pose.Pose) (raw, value pose.Pose, disabled pose.Mask) {
	for i := range p.table {
		src := p.table[i].Source
		disabled[i] = p.table[i].Disabled()
		if src >= 0 && src < pose.NumAxes {
			value[i] = in[src]
		}
	}
	return in, value, disabled
}

// clampValue normalizes the rotation channels. Some network trackers send
// angles outside ±180.
func clampValue(value pose.Pose) pose.Pose {
	for i := pose.Yaw; i <= pose.Roll; i++ {
		value[i] = clampAngle(value[i])
	}
	return value
}

// clampAngle maps x into (-180, 180]. Values that exceed ±180 by more than
// a hundredth of a degree wrap around; smaller excursions are clamped.
func clampAngle(x float64) float64 {
	x = math.Mod(x, 360)
	if math.Abs(x)-1e-2 > 180 {
		s := math.Copysign(180, x)
		x = math.Mod(x+s, 360) - s
	} else {
		x = math.Max(-180, math.Min(180, x))
	}
	if x == -180 {
		x = 180
	}
	return x
}

func (p *Pipeline) maybeEnableCenterOnTrackingStarted() {
	if p.trackingStarted || p.newPose.IsZero() {
		return
	}
	p.trackingStarted = true
	diagf("tracking started")
	if p.settings.CenterAtStartup {
		p.flags.Set(flags.Center, true)
	}
}

func (p *Pipeline) maybeSetCenterPose(value pose.Pose, ownCenter bool) {
	rad := r3.Scale(pose.Deg2Rad, value.Rotation())
	p.scaled.update(rad)
	p.real.update(rad)

	if !p.flags.Get(flags.Center) {
		return
	}

	if !isNilInterface(p.libs.Filter) {
		p.libs.Filter.Center()
	}

	if ownCenter {
		p.scaled.resetCenter()
		p.real.resetCenter()
		p.tCenter = r3.Vec{}
	} else {
		p.real.captureCenter()
		p.scaled.captureCenter()
		p.tCenter = value.Translation()
	}
	diagf("centered at %s (tracker centering: %t)", value, ownCenter)
}

func (p *Pipeline) applyCenter(value pose.Pose) pose.Pose {
	rot := p.scaled.centeredDeg()
	pos := r3.Sub(value.Translation(), p.tCenter)
	pos = reltrans.Rotate(p.real.center, pos, [3]bool{})

	value = value.WithTranslation(pos).WithRotation(rot)

	// inverting here does not break centering; it must happen before
	// translation compensation
	for i := range value {
		if p.table[i].Invert {
			value[i] = -value[i]
		}
	}
	return value
}

func (p *Pipeline) maybeApplyFilter(value pose.Pose) pose.Pose {
	if isNilInterface(p.libs.Filter) {
		return value
	}
	return p.libs.Filter.Filter(value)
}

func (p *Pipeline) applyRelTrans(value pose.Pose, disabled pose.Mask) pose.Pose {
	neck := reltrans.ApplyNeck(value, p.settings.NeckEnable, -p.settings.NeckZ)

	value = p.rel.ApplyPipeline(p.settings.RelTransMode, value, p.settings.RelTransDisable)
	value = value.WithTranslation(r3.Add(value.Translation(), neck))

	// compensation may have moved channels that have no source
	for i, d := range disabled {
		if d {
			value[i] = 0
		}
	}
	return value
}

func (p *Pipeline) applyZeroPos(value pose.Pose) pose.Pose {
	for i := range value {
		a := &p.table[i]
		if a.Invert {
			value[i] -= a.Zero
		} else {
			value[i] += a.Zero
		}
	}
	return value
}

// Run executes cycles until ctx is cancelled. A cycle that has started
// always completes. On exit the protocol receives a neutral pose.
func (p *Pipeline) Run(ctx context.Context) {
	p.writeHeader()
	p.logger.ResetDt()

	last := p.now()
	for ctx.Err() == nil {
		p.logic()

		now := p.now()
		elapsed := now.Sub(last)
		last = now

		sleep := p.sched.next(elapsed)
		tracef("cycle elapsed %v backlog %v sleep %v", elapsed, p.sched.backlog, sleep)
		if sleep <= 0 {
			continue
		}

		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}

	// the filter may keep the output away from the exact origin
	p.libs.Protocol.Pose(pose.Pose{})
	p.table.Deactivate()
}

var stageNames = [...]string{"raw", "corrected", "filtered", "mapped"}

func (p *Pipeline) writeHeader() {
	p.logger.Write("dt")
	for _, stage := range stageNames {
		for i := 0; i < pose.NumAxes; i++ {
			p.logger.Write(stage + pose.Axis(i).String())
		}
	}
	p.logger.NextLine()
}

// Start launches the worker goroutine. It is a no-op if already running.
func (p *Pipeline) Start() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		p.Run(ctx)
	}(p.done)
	opsf("started, period %v", TargetPeriod)
}

// Stop requests the worker to exit and waits for it.
func (p *Pipeline) Stop() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
	opsf("stopped")
}

// RawAndMappedPose returns copies of the last published output and the raw
// sample it was computed from.
func (p *Pipeline) RawAndMappedPose() (mapped, raw pose.Pose) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.outputPose, p.rawPose
}

// Flags returns the current control flags.
func (p *Pipeline) Flags() flags.Flag { return p.flags.Snapshot() }

// SetCenter requests centering on the next cycle.
func (p *Pipeline) SetCenter() { p.flags.Set(flags.Center, true) }

// SetEnabled drives the hold-to-enable hotkey state.
func (p *Pipeline) SetEnabled(value bool) { p.flags.Set(flags.EnabledHotkey, value) }

// SetZero forces the output to zero while value is true.
func (p *Pipeline) SetZero(value bool) { p.flags.Set(flags.Zero, value) }

// ToggleZero flips the zero flag.
func (p *Pipeline) ToggleZero() { p.flags.Negate(flags.Zero) }

// ToggleEnabled flips whether new samples are taken from the tracker.
func (p *Pipeline) ToggleEnabled() { p.flags.Negate(flags.EnabledSource) }
