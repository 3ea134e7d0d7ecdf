package mediator

// FirstFeasible selects the first feasible reply in subscription order.
// The cheapest possible policy; useful when subscription order already
// encodes priority.
func FirstFeasible[T any]() Strategy[T] {
	return firstFeasible[T]{}
}

type firstFeasible[T any] struct{}

func (firstFeasible[T]) Choose(results []T) int {
	return 0
}

// Pick orders a numeric strategy: lowest value wins or highest value wins.
type Pick int

const (
	PickMin Pick = iota
	PickMax
)

// Number selects by a numeric field of the test result, e.g. an estimated
// cost (PickMin) or a priority (PickMax). Ties keep the earlier reply, so
// selection is stable with respect to subscription order.
func Number[T any](value func(T) float64, pick Pick) Strategy[T] {
	return &number[T]{value: value, pick: pick}
}

type number[T any] struct {
	value func(T) float64
	pick  Pick
}

func (s *number[T]) Choose(results []T) int {
	best := 0
	bestValue := s.value(results[0])
	for i := 1; i < len(results); i++ {
		v := s.value(results[i])
		if (s.pick == PickMin && v < bestValue) || (s.pick == PickMax && v > bestValue) {
			best = i
			bestValue = v
		}
	}
	return best
}
