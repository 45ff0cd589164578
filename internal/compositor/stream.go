package compositor

// stream is a splitmix64 generator. It is tiny, has no bad seeds and its
// output sequence is fixed by the algorithm, which is what recipe
// reproducibility depends on.
type stream struct {
	state uint64
}

func newStream(seed uint64) *stream {
	return &stream{state: seed}
}

func (s *stream) next() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// intn returns a value in [0, n). n must be positive.
func (s *stream) intn(n int) int {
	return int(s.next() % uint64(n))
}

// between returns a value in [lo, hi].
func (s *stream) between(lo, hi int64) int64 {
	return lo + int64(s.intn(int(hi-lo+1)))
}

func pick[T any](s *stream, xs []T) T {
	return xs[s.intn(len(xs))]
}
