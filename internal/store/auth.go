package store

import "sync"

// CurrentUser is the identity delivered by the READY event.
type CurrentUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	IsDeveloper bool   `json:"is_developer"`
}

// AuthStore holds the current user for the session.
type AuthStore struct {
	mu   sync.RWMutex
	user *CurrentUser
}

func NewAuthStore() *AuthStore {
	return &AuthStore{}
}

func (s *AuthStore) SetCurrentUser(u CurrentUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
}

func (s *AuthStore) CurrentUser() (CurrentUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return CurrentUser{}, false
	}
	return *s.user, true
}

func (s *AuthStore) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

func (s *AuthStore) IsDeveloper() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.IsDeveloper
}

func (s *AuthStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
}
