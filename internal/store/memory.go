// Package store provides conversation persistence backends. Both backends
// implement the orchestrator's durability boundary; neither assumes it is
// the only writer.
package store

import (
	"context"
	"sync"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// Memory is an in-process conversation store, used for tests and single
// process deployments without durability needs.
type Memory struct {
	mu    sync.RWMutex
	convs map[string]models.Conversation
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{convs: make(map[string]models.Conversation)}
}

// Get returns a copy of the conversation, or nil when absent.
func (s *Memory) Get(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, nil
	}
	return &conv, nil
}

// Save stores a copy of the conversation.
func (s *Memory) Save(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.ID] = *conv
	return nil
}
