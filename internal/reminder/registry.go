package reminder

import (
	"sort"
	"sync"
)

// Registry keeps every user's reminder declarations. It never schedules
// anything itself; callers hand the returned Key to the scheduler.
type Registry struct {
	mu    sync.RWMutex
	users map[int64]map[Key]Reminder
}

func NewRegistry() *Registry {
	return &Registry{users: map[int64]map[Key]Reminder{}}
}

// Add stores the reminder, overwriting an entry with the same key.
func (r *Registry) Add(userID int64, at TimeOfDay, text string) Key {
	rem := Reminder{UserID: userID, At: at, Text: text}
	k := rem.Key()

	r.mu.Lock()
	m := r.users[userID]
	if m == nil {
		m = map[Key]Reminder{}
		r.users[userID] = m
	}
	m[k] = rem
	r.mu.Unlock()
	return k
}

// List returns the user's reminders ordered by time, then text.
func (r *Registry) List(userID int64) []Reminder {
	r.mu.RLock()
	out := make([]Reminder, 0, len(r.users[userID]))
	for _, rem := range r.users[userID] {
		out = append(out, rem)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].At != out[j].At {
			return out[i].At.Before(out[j].At)
		}
		return out[i].Text < out[j].Text
	})
	return out
}

// Len reports the total number of reminders across users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.users {
		n += len(m)
	}
	return n
}
