package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
)

type recorder struct {
	mu        sync.Mutex
	results   []Result
	summaries []Summary
	notify    chan Result
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan Result, 64)}
}

func (r *recorder) OnResult(res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
	r.notify <- res
}

func (r *recorder) OnSummary(s Summary) {
	r.mu.Lock()
	r.summaries = append(r.summaries, s)
	r.mu.Unlock()
}

func (r *recorder) wait(t *testing.T) Result {
	t.Helper()
	select {
	case res := <-r.notify:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	return Result{}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBackoffMonotonicWithFloor(t *testing.T) {
	is := is.New(t)
	s := NewScheduler(NewSlot(), nil, nil, Options{TargetFps: 12, MinFps: 6, FpsStep: 2})
	s.running = true
	gen := s.gen.Add(1)

	prev := s.State().TargetFps
	for i := 0; i < 20; i++ {
		// always slower than 1000/12 ms
		_, ok := s.adjust(gen, 150*time.Millisecond, true)
		is.True(ok)
		fps := s.State().TargetFps
		is.True(fps <= prev)
		is.True(fps >= 6)
		prev = fps
	}
	is.Equal(prev, 6.0)
	is.True(approx(s.State().AvgLoopMs, 150))
}

func TestAdjustDelayAndAverage(t *testing.T) {
	is := is.New(t)
	s := NewScheduler(NewSlot(), nil, nil, Options{TargetFps: 10, MinFps: 2, FpsStep: 1})
	s.running = true
	gen := s.gen.Add(1)

	delay, ok := s.adjust(gen, 40*time.Millisecond, true)
	is.True(ok)
	is.Equal(delay, 60*time.Millisecond)
	is.Equal(s.State().AvgLoopMs, 40.0) // first sample seeds the average

	_, _ = s.adjust(gen, 90*time.Millisecond, true)
	is.True(approx(s.State().AvgLoopMs, 50)) // 40*0.8 + 90*0.2
	is.Equal(s.State().TargetFps, 10.0)

	// an empty slot leaves the average alone but still gets the delay
	delay, _ = s.adjust(gen, time.Millisecond, false)
	is.Equal(delay, 99*time.Millisecond)
	is.True(approx(s.State().AvgLoopMs, 50))

	// overrun never produces a negative delay
	delay, _ = s.adjust(gen, 500*time.Millisecond, true)
	is.Equal(delay, time.Duration(0))

	_, ok = s.adjust(gen+1, time.Millisecond, false)
	is.True(!ok)
}

func TestSchedulerProcessesLatestFrame(t *testing.T) {
	is := is.New(t)
	slot := NewSlot()
	rec := newRecorder()
	det := DetectorFunc(func(ctx context.Context, f *Frame) (Inference, error) {
		return Inference{Detections: []Detection{{Label: "1", Score: 0.9}}}, nil
	})
	s := NewScheduler(slot, det, rec, Options{TargetFps: 50, MinFps: 10, FpsStep: 5, SummaryInterval: time.Nanosecond})

	var released atomic.Int32
	slot.Put(countedFrame(1, &released))
	slot.Put(countedFrame(2, &released))
	is.NoErr(s.Start(context.Background()))
	defer s.Stop()
	is.Equal(s.Start(context.Background()), ErrRunning)

	res := rec.wait(t)
	is.Equal(res.FrameID, uint64(2))
	is.Equal(len(res.Detections), 1)
	is.Equal(res.Generation, uint64(1))
	is.True(!res.InferenceTs.Before(res.RecvTs))

	slot.Put(countedFrame(3, &released))
	res = rec.wait(t)
	is.Equal(res.FrameID, uint64(3))
	is.Equal(s.Summary().Frames, uint64(2))

	// summaries follow results once the interval passed
	rec.mu.Lock()
	is.True(len(rec.summaries) >= 1)
	rec.mu.Unlock()

	s.Stop()
	is.True(!s.State().Running)
	eventually(t, func() bool { return released.Load() == 3 })
}

func TestInferenceErrorYieldsEmptyResult(t *testing.T) {
	is := is.New(t)
	slot := NewSlot()
	rec := newRecorder()
	det := DetectorFunc(func(ctx context.Context, f *Frame) (Inference, error) {
		return Inference{}, errors.New("engine crashed")
	})
	s := NewScheduler(slot, det, rec, Options{TargetFps: 50})
	is.NoErr(s.Start(context.Background()))
	defer s.Stop()

	var released atomic.Int32
	slot.Put(countedFrame(7, &released))
	res := rec.wait(t)
	is.Equal(res.FrameID, uint64(7))
	is.Equal(len(res.Detections), 0)

	// the loop keeps going after a failure
	slot.Put(countedFrame(8, &released))
	res = rec.wait(t)
	is.Equal(res.FrameID, uint64(8))
}

func TestStaleGenerationDiscarded(t *testing.T) {
	is := is.New(t)
	slot := NewSlot()
	rec := newRecorder()

	entered := make(chan uint64, 4)
	unblock := make(chan struct{})
	det := DetectorFunc(func(ctx context.Context, f *Frame) (Inference, error) {
		entered <- f.ID
		if f.ID == 1 {
			<-unblock
		}
		return Inference{Detections: []Detection{{Label: "x"}}}, nil
	})
	s := NewScheduler(slot, det, rec, Options{TargetFps: 50})

	var released atomic.Int32
	is.NoErr(s.Start(context.Background()))
	slot.Put(countedFrame(1, &released))
	is.Equal(<-entered, uint64(1))

	// restart while frame 1 is still inside the engine
	s.Stop()
	is.NoErr(s.Start(context.Background()))
	defer s.Stop()
	close(unblock)

	slot.Put(countedFrame(2, &released))
	res := rec.wait(t)
	is.Equal(res.FrameID, uint64(2))
	is.Equal(res.Generation, uint64(2))

	// give the old loop time to finish; it must not publish
	time.Sleep(50 * time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, r := range rec.results {
		is.True(r.FrameID != 1) // stale result leaked
	}
	is.Equal(s.Summary().Frames, uint64(1))
}

func TestStopReleasesHeldFrame(t *testing.T) {
	is := is.New(t)
	slot := NewSlot()
	det := DetectorFunc(func(ctx context.Context, f *Frame) (Inference, error) {
		return Inference{}, nil
	})
	// slow cadence so the frame is still waiting in the slot
	s := NewScheduler(slot, det, nil, Options{TargetFps: 0.5, MinFps: 0.5})
	is.NoErr(s.Start(context.Background()))
	time.Sleep(10 * time.Millisecond)

	var released atomic.Int32
	slot.Put(countedFrame(1, &released))
	s.Stop()
	is.Equal(released.Load(), int32(1))
}

func TestDetectorPanicKeepsLoopAlive(t *testing.T) {
	is := is.New(t)
	slot := NewSlot()
	rec := newRecorder()
	det := DetectorFunc(func(ctx context.Context, f *Frame) (Inference, error) {
		if f.ID == 1 {
			panic("index out of range")
		}
		return Inference{Detections: []Detection{{Label: "ok"}}}, nil
	})
	s := NewScheduler(slot, det, rec, Options{TargetFps: 50})
	is.NoErr(s.Start(context.Background()))
	defer s.Stop()

	var released atomic.Int32
	slot.Put(countedFrame(1, &released))
	res := rec.wait(t)
	is.Equal(res.FrameID, uint64(1))
	is.Equal(len(res.Detections), 0)
	eventually(t, func() bool { return released.Load() == 1 })

	slot.Put(countedFrame(2, &released))
	res = rec.wait(t)
	is.Equal(res.FrameID, uint64(2))
	is.Equal(len(res.Detections), 1)
	is.True(s.State().Running)
}

func TestStoppedLoopLeavesNextFrame(t *testing.T) {
	is := is.New(t)
	slot := NewSlot()
	s := NewScheduler(slot, DetectorFunc(func(ctx context.Context, f *Frame) (Inference, error) {
		return Inference{}, nil
	}), nil, Options{TargetFps: 50})
	s.running = true
	gen := s.gen.Add(1)
	s.gen.Add(1) // a newer generation took over

	var released atomic.Int32
	f := countedFrame(9, &released)
	slot.Put(f)
	s.loop(context.Background(), gen)

	// the stale loop returned without touching the slot
	is.Equal(slot.TakeAndClear(), f)
	is.Equal(released.Load(), int32(0))
}
