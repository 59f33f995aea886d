package humanizer

import "time"

// ScrollStep is one wheel movement followed by Pause.
type ScrollStep struct {
	DeltaY int
	Pause  time.Duration
}

// ScrollSegment is a forward scroll broken into steps, or a single backward
// correction, followed by a reading pause.
type ScrollSegment struct {
	Backward  bool
	Steps     []ScrollStep
	ReadPause time.Duration
}

// Distance is the signed total of the segment's steps.
func (s ScrollSegment) Distance() int {
	total := 0
	for _, st := range s.Steps {
		total += st.DeltaY
	}
	return total
}

const (
	backwardChance     = 0.15
	extendedReadChance = 0.20
	// minimum forward distance before a backward correction is allowed
	backwardThreshold = 300
)

// ScrollTrace returns n scroll segments.
func (h *Humanizer) ScrollTrace(n int) []ScrollSegment {
	segments := make([]ScrollSegment, 0, max(n, 0))
	travelled := 0

	for i := 0; i < n; i++ {
		var seg ScrollSegment
		if travelled >= backwardThreshold && h.Chance(backwardChance) {
			d := h.IntBetween(50, 150)
			seg.Backward = true
			seg.Steps = []ScrollStep{{DeltaY: -d, Pause: h.Duration(ms(20), ms(60))}}
			travelled -= d
		} else {
			d := h.IntBetween(120, 450)
			seg.Steps = h.splitScroll(d, h.IntBetween(3, 7))
			travelled += d
		}

		seg.ReadPause = h.Duration(ms(600), ms(2200))
		if h.Chance(extendedReadChance) {
			seg.ReadPause += h.Duration(ms(1000), ms(3000))
		}
		segments = append(segments, seg)
	}
	return segments
}

// splitScroll divides total into parts steps whose deltas sum to total.
func (h *Humanizer) splitScroll(total, parts int) []ScrollStep {
	steps := make([]ScrollStep, parts)
	remaining := total
	for i := range steps {
		left := parts - i
		d := remaining / left
		if left > 1 {
			// vary each step by up to a third around the even share
			d += h.IntBetween(-d/3, d/3)
		} else {
			d = remaining
		}
		remaining -= d
		steps[i] = ScrollStep{DeltaY: d, Pause: h.Duration(ms(20), ms(60))}
	}
	return steps
}
