package room

import "sync"

// lockRoom returns the serialization point for a room. Every mutation of a
// room's membership or playback state runs inside this lock, so concurrent
// intents for the same room are strictly ordered while distinct rooms proceed
// in parallel.
func (s *service) lockRoom(roomCode string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[roomCode]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[roomCode] = mu
	}

	return mu
}

// forgetLock drops the lock entry for a closed room. A goroutine still
// holding the old mutex keeps a valid reference; any operation it performs
// afterwards fails on the inactive room.
func (s *service) forgetLock(roomCode string) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	delete(s.locks, roomCode)
}
