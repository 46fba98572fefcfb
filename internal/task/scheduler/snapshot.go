package scheduler

import "sort"

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	out := Snapshot{
		Timezone: s.loc.String(),
		Stopped:  s.stopped,
		Triggers: make([]TriggerInfo, 0, len(s.triggers)),
	}
	for _, t := range s.triggers {
		out.Triggers = append(out.Triggers, TriggerInfo{
			UserID:    t.userID,
			At:        t.at.String(),
			Text:      t.text,
			State:     t.state.String(),
			Next:      t.next,
			LastFire:  t.last,
			Fires:     t.fires,
			LastError: t.lastErr,
		})
	}
	s.mu.Unlock()

	sort.Slice(out.Triggers, func(i, j int) bool {
		a, b := out.Triggers[i], out.Triggers[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.At != b.At {
			return a.At < b.At
		}
		return a.Text < b.Text
	})
	return out
}
