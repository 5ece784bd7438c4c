package geo

import (
	"fmt"
	"net"
	"sync"
)

// StaticProvider serves lookups from an in-memory table. Used in development
// when no GeoLite2 file is configured, and in tests.
type StaticProvider struct {
	mu      sync.RWMutex
	data    map[string]*Info
	lookups int
}

// NewStaticProvider creates an empty static provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		data: make(map[string]*Info),
	}
}

// AddEntry maps ip to info.
func (s *StaticProvider) AddEntry(ip string, info *Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[ip] = info
}

// Lookup returns the entry for ip.
func (s *StaticProvider) Lookup(ip string) (*Info, error) {
	if net.ParseIP(ip) == nil {
		return nil, fmt.Errorf("invalid IP address: %s", ip)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++

	if info, ok := s.data[ip]; ok {
		return info, nil
	}
	return nil, ErrNotFound
}

// Lookups returns how many lookups reached the table.
func (s *StaticProvider) Lookups() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookups
}

func (s *StaticProvider) Close() error {
	return nil
}
