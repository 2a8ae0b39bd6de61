package usecases

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"

	"github.com/evgpopov/muza/internal/modules/music/domain"
)

// SessionRegistry tracks the live playback session of each guild.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[snowflake.ID]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[snowflake.ID]*Session)}
}

// GetOrCreate returns the guild's session, creating one seeded with
// initial when none exists. created reports whether this call created
// the session; creation and the initial enqueue are atomic, so two
// concurrent play requests for an idle guild yield exactly one new
// session.
func (r *SessionRegistry) GetOrCreate(guildID, voiceChannelID, textChannelID snowflake.ID, initial domain.Track) (sess *Session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[guildID]; ok {
		return sess, false
	}
	sess = newSession(guildID, voiceChannelID, textChannelID, initial)
	r.sessions[guildID] = sess
	return sess, true
}

// Get returns the guild's session if one exists.
func (r *SessionRegistry) Get(guildID snowflake.ID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[guildID]
	return sess, ok
}

// Remove drops the guild's session from the registry.
func (r *SessionRegistry) Remove(guildID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, guildID)
}

// All returns a snapshot of the live sessions.
func (r *SessionRegistry) All() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}

// Count reports the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
