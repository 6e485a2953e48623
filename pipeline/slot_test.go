package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
)

func countedFrame(id uint64, released *atomic.Int32) *Frame {
	return NewFrame(nil, id, time.Now(), func() { released.Add(1) })
}

func TestSlotOverwriteReleasesOnce(t *testing.T) {
	is := is.New(t)
	s := NewSlot()

	var relA, relB atomic.Int32
	a := countedFrame(1, &relA)
	b := countedFrame(2, &relB)

	s.Put(a)
	s.Put(b)
	got := s.TakeAndClear()
	is.Equal(got, b)
	is.Equal(relA.Load(), int32(1))
	is.Equal(relB.Load(), int32(0))
	is.Equal(s.TakeAndClear(), (*Frame)(nil))

	got.Release()
	got.Release()
	a.Release()
	is.Equal(relA.Load(), int32(1))
	is.Equal(relB.Load(), int32(1))

	is.Equal(s.Stats(), SlotStats{Puts: 2, Drops: 1})
}

func TestSlotClose(t *testing.T) {
	is := is.New(t)
	s := NewSlot()

	var held, late atomic.Int32
	s.Put(countedFrame(1, &held))
	s.Close()
	is.Equal(held.Load(), int32(1))

	s.Put(countedFrame(2, &late))
	is.Equal(late.Load(), int32(1))
	is.Equal(s.TakeAndClear(), (*Frame)(nil))

	s.Open()
	var fresh atomic.Int32
	s.Put(countedFrame(3, &fresh))
	is.Equal(s.TakeAndClear().ID, uint64(3))
}

func TestSlotConcurrentProducers(t *testing.T) {
	is := is.New(t)
	s := NewSlot()

	var released atomic.Int32
	var wg sync.WaitGroup
	const n = 200
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Put(countedFrame(uint64(i), &released))
		}(i)
	}
	wg.Wait()

	last := s.TakeAndClear()
	is.True(last != nil)
	// every frame but the survivor was released exactly once
	is.Equal(released.Load(), int32(n-1))
	last.Release()
	is.Equal(released.Load(), int32(n))
}
