package vm

import (
	"iter"
	"slices"
)

// Stack is the unbounded call and data stack.
type Stack struct {
	Data []uint16
}

func (s *Stack) Push(value uint16) {
	s.Data = append(s.Data, value)
}

func (s *Stack) Pop() (value uint16, ok bool) {
	value, ok = s.Peek()
	if ok {
		s.Data = s.Data[:len(s.Data)-1]
	}
	return
}

func (s *Stack) Empty() bool {
	return len(s.Data) == 0
}

func (s *Stack) Len() int {
	return len(s.Data)
}

func (s *Stack) Peek() (value uint16, ok bool) {
	if s.Empty() {
		return
	}

	return s.Data[len(s.Data)-1], true
}

// All iterates from the top of the stack down.
func (s *Stack) All() iter.Seq2[int, uint16] {
	return func(yield func(depth int, value uint16) bool) {
		for n, value := range slices.Backward(s.Data) {
			if !yield(len(s.Data)-1-n, value) {
				return
			}
		}
	}
}

func (s *Stack) Reset() {
	if len(s.Data) > 0 {
		s.Data = s.Data[:0]
	}
}
