package transport

import "sync"

// TokenStore holds the current short-lived access credential in process
// memory. It is owned by the session that created it and injected into the
// Transport, so independent sessions never share credentials. The token is
// never written to durable storage; a process restart always starts
// unauthenticated.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Set replaces the held credential.
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Get returns the held credential and whether one is present.
func (s *TokenStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Clear drops the held credential.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}
