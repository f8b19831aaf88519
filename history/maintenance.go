package history

import "time"

type UserStats struct {
	Username     string `json:"username"`
	TotalEntries int    `json:"total_entries"`
	UserMessages int    `json:"user_messages"`
	BotReplies   int    `json:"bot_replies"`
}

func (s *Store) Stats() map[string]UserStats {
	stats := make(map[string]UserStats, len(s.users))
	for userID, rec := range s.users {
		st := UserStats{Username: rec.Username, TotalEntries: len(rec.Entries)}
		for _, e := range rec.Entries {
			if e.Role == RoleUser {
				st.UserMessages++
			} else {
				st.BotReplies++
			}
		}
		stats[userID] = st
	}
	return stats
}

// RemoveDuplicates drops repeated (role, text) pairs from every user's
// log, keeping the first occurrence, and persists when anything changed.
func (s *Store) RemoveDuplicates() int {
	removed := 0
	for _, rec := range s.users {
		seen := make(map[string]bool, len(rec.Entries))
		kept := rec.Entries[:0]
		for _, e := range rec.Entries {
			key := string(e.Role) + ":" + e.Text
			if seen[key] {
				removed++
				continue
			}
			seen[key] = true
			kept = append(kept, e)
		}
		rec.Entries = kept
	}
	if removed > 0 {
		s.persist()
		s.logger.Info("history_duplicates_removed", "channel_id", s.channelID, "removed", removed)
	}
	return removed
}

func (s *Store) ClearUser(userID string) {
	if _, ok := s.users[userID]; !ok {
		return
	}
	delete(s.users, userID)
	delete(s.processed, userID)
	s.persist()
	s.logger.Info("history_user_cleared", "channel_id", s.channelID, "user_id", userID)
}

func (s *Store) ClearAll() {
	s.users = make(map[string]*UserRecord)
	s.processed = make(map[string]map[string]bool)
	s.recent = make(map[string]time.Time)
	s.persist()
	s.logger.Info("history_cleared", "channel_id", s.channelID)
}
