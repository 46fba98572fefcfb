package todo

import (
	"fmt"
	"sort"
	"sync"
)

// Store keeps every user's tasks in insertion order.
//
// It does not validate priorities; callers run ParsePriority first.
// All methods are safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	seq   uint64
	tasks map[int64][]Task
}

func NewStore() *Store {
	return &Store{tasks: map[int64][]Task{}}
}

func (s *Store) Add(userID int64, p Priority, text string) {
	s.mu.Lock()
	s.seq++
	s.tasks[userID] = append(s.tasks[userID], Task{Priority: p, Text: text, seq: s.seq})
	s.mu.Unlock()
}

// List returns the user's tasks sorted by priority rank, ties in insertion order.
func (s *Store) List(userID int64) []Task {
	s.mu.RLock()
	out := append([]Task(nil), s.tasks[userID]...)
	s.mu.RUnlock()
	sortTasks(out)
	return out
}

func (s *Store) Count(userID int64) int {
	s.mu.RLock()
	n := len(s.tasks[userID])
	s.mu.RUnlock()
	return n
}

// DeleteAt removes the task at 1-based position pos of the sorted view.
func (s *Store) DeleteAt(userID int64, pos int) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.tasks[userID]
	if pos < 1 || pos > len(cur) {
		return Task{}, fmt.Errorf("%w: %d (have %d)", ErrOutOfRange, pos, len(cur))
	}

	view := append([]Task(nil), cur...)
	sortTasks(view)
	target := view[pos-1]

	for i := range cur {
		if cur[i].seq != target.seq {
			continue
		}
		next := make([]Task, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		if len(next) == 0 {
			delete(s.tasks, userID)
		} else {
			s.tasks[userID] = next
		}
		return target, nil
	}
	// unreachable: target came from cur
	return Task{}, fmt.Errorf("%w: %d", ErrOutOfRange, pos)
}

func sortTasks(ts []Task) {
	sort.SliceStable(ts, func(i, j int) bool {
		ri, rj := ts[i].Priority.Rank(), ts[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return ts[i].seq < ts[j].seq
	})
}
