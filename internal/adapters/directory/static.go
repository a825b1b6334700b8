// Package directory resuelve emails de usuarios. La versión estática sirve
// para dev y tests; en producción se respalda en el IAM.
package directory

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrUnknownUser = errors.New("unknown user")

type Static struct {
	mu   sync.RWMutex
	byID map[string]string
}

func NewStatic() *Static {
	return &Static{byID: make(map[string]string)}
}

// NewStaticFromEnv parsea "user-1:a@x.com,user-2:b@x.com".
func NewStaticFromEnv(raw string) *Static {
	s := NewStatic()
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		s.Set(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
	}
	return s
}

func (s *Static) Set(userID, email string) {
	if userID == "" || email == "" {
		return
	}
	s.mu.Lock()
	s.byID[userID] = email
	s.mu.Unlock()
}

func (s *Static) Email(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.byID[strings.TrimSpace(userID)]
	if !ok {
		return "", ErrUnknownUser
	}
	return email, nil
}
