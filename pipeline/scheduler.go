package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yixinin/camsight/util"
)

var ErrRunning = errors.New("scheduler already running")

// Result is emitted once per processed frame.
type Result struct {
	FrameID     uint64      `json:"frame_id"`
	Generation  uint64      `json:"generation"`
	CaptureTs   time.Time   `json:"capture_ts"`
	RecvTs      time.Time   `json:"recv_ts"`
	InferenceTs time.Time   `json:"inference_ts"`
	Detections  []Detection `json:"detections"`
	Geometry    Geometry    `json:"geometry"`
}

// Listener receives pipeline output. Calls come from the scheduler
// goroutine and should return quickly.
type Listener interface {
	OnResult(r Result)
	OnSummary(s Summary)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Result  func(r Result)
	Summary func(s Summary)
}

func (l ListenerFuncs) OnResult(r Result) {
	if l.Result != nil {
		l.Result(r)
	}
}

func (l ListenerFuncs) OnSummary(s Summary) {
	if l.Summary != nil {
		l.Summary(s)
	}
}

type Options struct {
	TargetFps       float64
	MinFps          float64
	FpsStep         float64
	SummaryInterval time.Duration
}

func (o *Options) fill() {
	if o.TargetFps <= 0 {
		o.TargetFps = 12
	}
	if o.MinFps <= 0 {
		o.MinFps = 6
	}
	if o.MinFps > o.TargetFps {
		o.MinFps = o.TargetFps
	}
	if o.FpsStep <= 0 {
		o.FpsStep = 2
	}
}

type State struct {
	TargetFps  float64 `json:"target_fps"`
	AvgLoopMs  float64 `json:"avg_loop_ms"`
	Running    bool    `json:"running"`
	Generation uint64  `json:"generation"`
}

// Scheduler drains the slot at an adaptive rate. When the moving average of
// loop time exceeds the frame budget it lowers its target rate, down to
// MinFps, instead of letting work pile up.
type Scheduler struct {
	slot     *Slot
	detector Detector
	listener Listener
	metrics  *Aggregator
	opt      Options

	gen atomic.Uint64

	mu          sync.Mutex
	cancel      context.CancelFunc
	running     bool
	targetFps   float64
	avgMs       float64
	sampled     bool
	lastSummary time.Time
}

func NewScheduler(slot *Slot, detector Detector, listener Listener, opt Options) *Scheduler {
	opt.fill()
	if listener == nil {
		listener = ListenerFuncs{}
	}
	return &Scheduler{
		slot:      slot,
		detector:  detector,
		listener:  listener,
		metrics:   NewAggregator(),
		opt:       opt,
		targetFps: opt.TargetFps,
	}
}

// Start begins a new generation. Results still in flight from an earlier
// generation are discarded when they complete.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}

	gen := s.gen.Add(1)
	s.running = true
	s.targetFps = s.opt.TargetFps
	s.avgMs = 0
	s.sampled = false
	s.lastSummary = time.Now()
	s.metrics.Reset()
	s.slot.Open()

	ctx, s.cancel = context.WithCancel(ctx)
	util.GoFunc(ctx, func(ctx context.Context) error {
		s.loop(ctx, gen)
		return nil
	})
	logrus.WithField("generation", gen).Infof("pipeline started at %.1f fps", s.targetFps)
	return nil
}

// Stop cancels the pending iteration and releases the slot's frame. It does
// not wait for an in-flight inference.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	gen := s.gen.Load()
	s.mu.Unlock()

	s.slot.Close()
	logrus.WithField("generation", gen).Info("pipeline stopped")
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		TargetFps:  s.targetFps,
		AvgLoopMs:  s.avgMs,
		Running:    s.running,
		Generation: s.gen.Load(),
	}
}

func (s *Scheduler) Summary() Summary {
	return s.metrics.Summary()
}

func (s *Scheduler) current(gen uint64) bool {
	return s.gen.Load() == gen
}

func (s *Scheduler) loop(ctx context.Context, gen uint64) {
	for {
		if ctx.Err() != nil || !s.current(gen) {
			return
		}
		start := time.Now()
		var sampled bool
		if f := s.slot.TakeAndClear(); f != nil {
			s.process(ctx, gen, f)
			sampled = true
		}
		delay, ok := s.adjust(gen, time.Since(start), sampled)
		if !ok {
			return
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (s *Scheduler) process(ctx context.Context, gen uint64, f *Frame) {
	defer f.Release()

	recv := time.Now()
	// an in-flight call outlives Stop; its result is dropped below
	inf, err := s.detect(context.WithoutCancel(ctx), f)
	if err != nil {
		logrus.WithField("frame", f.ID).Warnf("inference failed:%v", err)
		inf = Inference{}
	}
	done := time.Now()

	if !s.current(gen) {
		logrus.WithField("frame", f.ID).WithField("generation", gen).Debug("discard stale result")
		return
	}

	s.metrics.Add(done.Sub(f.CaptureTs))
	s.listener.OnResult(Result{
		FrameID:     f.ID,
		Generation:  gen,
		CaptureTs:   f.CaptureTs,
		RecvTs:      recv,
		InferenceTs: done,
		Detections:  inf.Detections,
		Geometry:    inf.Geometry,
	})

	if s.opt.SummaryInterval > 0 {
		s.mu.Lock()
		due := done.Sub(s.lastSummary) >= s.opt.SummaryInterval
		if due {
			s.lastSummary = done
		}
		s.mu.Unlock()
		if due {
			s.listener.OnSummary(s.metrics.Summary())
		}
	}
}

// detect runs the detector, turning a panic into an error for this frame.
func (s *Scheduler) detect(ctx context.Context, f *Frame) (inf Inference, err error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("frame", f.ID).WithField("stacks", string(debug.Stack())).Errorf("detector paniced:%v", r)
			inf, err = Inference{}, fmt.Errorf("detector panic: %v", r)
		}
	}()
	return s.detector.Detect(ctx, f)
}

// adjust folds one loop duration into the pipeline state and returns the
// delay before the next iteration. ok is false once gen is no longer live.
func (s *Scheduler) adjust(gen uint64, elapsed time.Duration, sampled bool) (delay time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || !s.current(gen) {
		return 0, false
	}

	ms := float64(elapsed) / float64(time.Millisecond)
	if sampled {
		if s.sampled {
			s.avgMs = s.avgMs*0.8 + ms*0.2
		} else {
			s.avgMs = ms
			s.sampled = true
		}
	}

	budget := 1000 / s.targetFps
	delay = time.Duration(math.Max(0, budget-ms) * float64(time.Millisecond))

	if s.avgMs > budget {
		next := math.Max(s.opt.MinFps, s.targetFps-s.opt.FpsStep)
		if next != s.targetFps {
			logrus.WithField("generation", gen).Infof("inference %.1fms over %.1fms budget, target fps %.1f -> %.1f", s.avgMs, budget, s.targetFps, next)
		}
		s.targetFps = next
	}
	return delay, true
}
