// Package redisstore provides a PersistenceAdapter backed by Redis,
// suitable when flow state must survive process restarts and be shared
// across instances.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/stepflow/pkg/api"
)

// Store keeps the whole flow state under a single key:
//
//	<prefix><flowID> => JSON payload
type Store struct {
	client *redis.Client
	key    string
}

var _ api.PersistenceAdapter = (*Store)(nil)

type payload struct {
	FlowData    map[string]any `json:"flowData"`
	CurrentStep *string        `json:"currentStep,omitempty"`
}

// New creates a Store for flowID. prefix is optional and defaults to
// "stepflow:".
func New(client *redis.Client, flowID, prefix string) (*Store, error) {
	if flowID == "" {
		return nil, errors.New("redisstore: flow id must not be empty")
	}
	if prefix == "" {
		prefix = "stepflow:"
	}
	return &Store{client: client, key: prefix + flowID}, nil
}

func (s *Store) Load(ctx context.Context) (*api.LoadedData, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: load %s: %w", s.key, err)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("redisstore: decode %s: %w", s.key, err)
	}

	loaded := &api.LoadedData{FlowData: p.FlowData}
	if p.CurrentStep != nil {
		id := api.StepID(*p.CurrentStep)
		loaded.CurrentStepID = &id
	}
	return loaded, nil
}

func (s *Store) Persist(ctx context.Context, fc *api.Context, currentStepID *api.StepID) error {
	p := payload{FlowData: fc.FlowData}
	if currentStepID != nil {
		str := string(*currentStepID)
		p.CurrentStep = &str
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redisstore: encode %s: %w", s.key, err)
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: persist %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redisstore: clear %s: %w", s.key, err)
	}
	return nil
}
