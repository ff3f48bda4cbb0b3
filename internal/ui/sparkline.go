package ui

import "strings"

// Sparkline renders a text-based throughput chart using Unicode block
// characters. Samples are kept in a ring buffer.
type Sparkline struct {
	samples []float64
	size    int
	head    int
	count   int
	max     float64
}

var sparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// NewSparkline creates a sparkline holding up to size samples.
func NewSparkline(size int) *Sparkline {
	if size <= 0 {
		size = 60
	}
	return &Sparkline{
		samples: make([]float64, size),
		size:    size,
	}
}

// Add appends a sample.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % s.size
	s.count++

	if value > s.max {
		s.max = value
	}
	// Recompute max once per full rotation so old peaks decay.
	if s.count%s.size == 0 {
		s.recalculateMax()
	}
}

func (s *Sparkline) recalculateMax() {
	s.max = 0
	for _, v := range s.samples {
		if v > s.max {
			s.max = v
		}
	}
	if s.max < 1 {
		s.max = 1
	}
}

// Render returns the most recent samples as block characters, padded
// with spaces to width.
func (s *Sparkline) Render(width int) string {
	if width <= 0 || width > s.size {
		width = s.size
	}

	held := s.count
	if held > s.size {
		held = s.size
	}

	shown := held
	if shown > width {
		shown = width
	}

	var sb strings.Builder
	sb.Grow(width * 3)

	// Oldest rendered sample sits shown steps back from head.
	start := (s.head - shown + s.size) % s.size
	for i := 0; i < shown; i++ {
		value := s.samples[(start+i)%s.size]
		charIdx := 0
		if s.max > 0 {
			charIdx = int(value / s.max * float64(len(sparklineChars)-1))
			if charIdx < 0 {
				charIdx = 0
			}
			if charIdx >= len(sparklineChars) {
				charIdx = len(sparklineChars) - 1
			}
		}
		sb.WriteRune(sparklineChars[charIdx])
	}

	for i := shown; i < width; i++ {
		sb.WriteRune(' ')
	}

	return sb.String()
}

// Clear resets the sparkline.
func (s *Sparkline) Clear() {
	for i := range s.samples {
		s.samples[i] = 0
	}
	s.head = 0
	s.count = 0
	s.max = 0
}

// Count returns the number of samples added.
func (s *Sparkline) Count() int {
	return s.count
}

// Max returns the current maximum value.
func (s *Sparkline) Max() float64 {
	return s.max
}
