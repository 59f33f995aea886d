package humanizer

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed int64) *Humanizer {
	return NewWithSource(rand.NewSource(seed), nil)
}

func TestDurationWithinBounds(t *testing.T) {
	h := seeded(1)
	cases := []struct{ min, max time.Duration }{
		{0, time.Millisecond},
		{40 * time.Millisecond, 180 * time.Millisecond},
		{time.Second, 2 * time.Second},
		{25 * time.Second, 35 * time.Second},
	}
	for _, c := range cases {
		for i := 0; i < 500; i++ {
			d := h.Duration(c.min, c.max)
			require.GreaterOrEqual(t, d, c.min)
			require.Less(t, d, c.max)
		}
	}
}

func TestDelaySleepsSampledDuration(t *testing.T) {
	var slept time.Duration
	h := NewWithSource(rand.NewSource(7), func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	})
	d, err := h.Delay(context.Background(), 800*time.Millisecond, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, d, slept)
	assert.GreaterOrEqual(t, d, 800*time.Millisecond)
	assert.Less(t, d, 2*time.Second)
}

func TestSleepContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := SleepContext(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIntBetweenInclusive(t *testing.T) {
	h := seeded(3)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v := h.IntBetween(3, 7)
		require.GreaterOrEqual(t, v, 3)
		require.LessOrEqual(t, v, 7)
		seen[v] = true
	}
	assert.Len(t, seen, 5)
}

func TestTypingTracePreservesText(t *testing.T) {
	inputs := []string{
		"",
		"hello",
		"Hi there. How are you? Fine!",
		"line one\nline two\n\nünïcödé, ok; done:",
	}
	for seed := int64(0); seed < 20; seed++ {
		h := seeded(seed)
		for _, in := range inputs {
			trace := h.TypingTrace(in)
			require.Len(t, trace, len([]rune(in)))
			require.Equal(t, in, Text(trace))
		}
	}
}

func TestTypingTraceNormalizesLineEndings(t *testing.T) {
	trace := seeded(1).TypingTrace("one\r\ntwo\rthree")

	assert.Equal(t, "one\ntwo\nthree", Text(trace))
	for _, k := range trace {
		assert.NotEqual(t, '\r', k.Char)
	}
	assert.True(t, trace[3].LineBreak)
}

func TestTypingTraceDelays(t *testing.T) {
	h := seeded(42)
	trace := h.TypingTrace("a\nb. c")

	// plain characters: base [40,180) plus an optional thinking pause
	assert.GreaterOrEqual(t, trace[0].PreDelay, 40*time.Millisecond)
	assert.Less(t, trace[0].PreDelay, 1380*time.Millisecond)

	require.True(t, trace[1].LineBreak)
	assert.GreaterOrEqual(t, trace[1].PreDelay, 100*time.Millisecond)
	assert.Less(t, trace[1].PreDelay, 300*time.Millisecond)

	// the space after "." carries the punctuation and sentence-end pauses
	space := trace[4]
	require.Equal(t, ' ', space.Char)
	assert.GreaterOrEqual(t, space.PreDelay, (40+100+200)*time.Millisecond)
	for _, k := range trace {
		assert.False(t, k.LineBreak && k.Char != '\n')
	}
}

func TestScrollTraceBounds(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		h := seeded(seed)
		segs := h.ScrollTrace(12)
		require.Len(t, segs, 12)
		travelled := 0
		for i, s := range segs {
			d := s.Distance()
			if s.Backward {
				require.Len(t, s.Steps, 1)
				require.GreaterOrEqual(t, -d, 50)
				require.LessOrEqual(t, -d, 150)
				require.GreaterOrEqual(t, travelled, backwardThreshold, "segment %d", i)
			} else {
				require.GreaterOrEqual(t, len(s.Steps), 3)
				require.LessOrEqual(t, len(s.Steps), 7)
				require.GreaterOrEqual(t, d, 120)
				require.LessOrEqual(t, d, 450)
				for _, st := range s.Steps {
					require.Positive(t, st.DeltaY)
				}
			}
			for _, st := range s.Steps {
				require.GreaterOrEqual(t, st.Pause, 20*time.Millisecond)
				require.Less(t, st.Pause, 60*time.Millisecond)
			}
			require.GreaterOrEqual(t, s.ReadPause, 600*time.Millisecond)
			require.Less(t, s.ReadPause, 5200*time.Millisecond)
			travelled += d
		}
	}
}

func TestScrollTraceFirstSegmentIsForward(t *testing.T) {
	for seed := int64(0); seed < 100; seed++ {
		segs := seeded(seed).ScrollTrace(1)
		require.False(t, segs[0].Backward)
	}
}

func TestPointerPathStaysInViewport(t *testing.T) {
	vp := Viewport{Width: 1280, Height: 800}
	points := [][2]Point{
		{{0, 0}, {1280, 800}},
		{{5, 795}, {1275, 3}},
		{{640, 400}, {641, 401}},
		{{-50, 900}, {2000, -10}},
	}
	for seed := int64(0); seed < 200; seed++ {
		h := seeded(seed)
		for _, se := range points {
			path := h.PointerPath(se[0], se[1], vp)
			require.GreaterOrEqual(t, len(path), 15)
			require.LessOrEqual(t, len(path), 35)
			for _, st := range path {
				require.GreaterOrEqual(t, st.Point.X, 0.0)
				require.LessOrEqual(t, st.Point.X, 1280.0)
				require.GreaterOrEqual(t, st.Point.Y, 0.0)
				require.LessOrEqual(t, st.Point.Y, 800.0)
				require.GreaterOrEqual(t, st.Delay, 4*time.Millisecond)
				require.Less(t, st.Delay, 38*time.Millisecond)
			}
		}
	}
}

func TestPointerPathEndsAtTarget(t *testing.T) {
	h := seeded(9)
	path := h.PointerPath(Point{10, 10}, Point{900, 500}, Viewport{Width: 1280, Height: 800})
	last := path[len(path)-1].Point
	assert.InDelta(t, 900, last.X, 1e-9)
	assert.InDelta(t, 500, last.Y, 1e-9)
}

func TestPointerPathSlowerAtEnds(t *testing.T) {
	var ends, mid time.Duration
	var nEnds, nMid int
	for seed := int64(0); seed < 100; seed++ {
		path := seeded(seed).PointerPath(Point{0, 0}, Point{1000, 700}, Viewport{Width: 1280, Height: 800})
		ends += path[0].Delay + path[len(path)-1].Delay
		nEnds += 2
		m := path[len(path)/2]
		mid += m.Delay
		nMid++
	}
	assert.Greater(t, ends/time.Duration(nEnds), mid/time.Duration(nMid))
}

func TestSmoothstep(t *testing.T) {
	assert.Equal(t, 0.0, smoothstep(0))
	assert.Equal(t, 1.0, smoothstep(1))
	assert.Equal(t, 0.5, smoothstep(0.5))
}
