package series

import "tickstream/internal/model"

// ring is a fixed-capacity circular buffer of samples. Once full, each push
// overwrites the oldest sample. Not safe for concurrent use; Store guards it.
type ring struct {
	buf  []model.Sample
	pos  int // next write position
	full bool
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]model.Sample, capacity)}
}

func (r *ring) push(s model.Sample) {
	r.buf[r.pos] = s
	r.pos = (r.pos + 1) % len(r.buf)
	if r.pos == 0 && !r.full {
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.pos
}

// at returns the logical i-th sample, 0 being the oldest.
func (r *ring) at(i int) model.Sample {
	if r.full {
		return r.buf[(r.pos+i)%len(r.buf)]
	}
	return r.buf[i]
}

func (r *ring) last() (model.Sample, bool) {
	n := r.len()
	if n == 0 {
		return model.Sample{}, false
	}
	return r.at(n - 1), true
}

// snapshot copies the samples out in time order.
func (r *ring) snapshot() []model.Sample {
	n := r.len()
	out := make([]model.Sample, n)
	if !r.full {
		copy(out, r.buf[:n])
		return out
	}
	k := copy(out, r.buf[r.pos:])
	copy(out[k:], r.buf[:r.pos])
	return out
}
