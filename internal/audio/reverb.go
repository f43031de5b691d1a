package audio

// Comb delay lengths in samples; mutually prime so the echoes smear.
var combDelays = []int{1557, 1617, 1491, 1422}

// reverb is a bank of parallel feedback comb filters.
type reverb struct {
	lines [][]float64
	pos   []int
	decay float64
}

func newReverb(decay float64) *reverb {
	r := &reverb{
		lines: make([][]float64, len(combDelays)),
		pos:   make([]int, len(combDelays)),
		decay: clamp(decay, 0, 0.95),
	}
	for i, d := range combDelays {
		r.lines[i] = make([]float64, d)
	}
	return r
}

// process feeds one dry sample in and returns the wet sample.
func (r *reverb) process(in float64) float64 {
	var out float64
	for i, line := range r.lines {
		p := r.pos[i]
		delayed := line[p]
		line[p] = in + delayed*r.decay
		r.pos[i] = (p + 1) % len(line)
		out += delayed
	}
	return out / float64(len(r.lines))
}

func (r *reverb) reset() {
	for _, line := range r.lines {
		clear(line)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
