package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// RedisStore keeps conversations as JSON values and messages as lists:
//
//	conv:<id>        conversation JSON
//	pair:<a>:<b>     pair index, value is the conversation id
//	msgs:<id>        message JSON list, append order
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) FindConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	data, err := s.client.Get(ctx, "conv:"+string(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var conv domain.Conversation
	if err := json.Unmarshal([]byte(data), &conv); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return &conv, nil
}

func (s *RedisStore) FindByParticipants(ctx context.Context, a, b domain.UserID) (*domain.Conversation, error) {
	id, err := s.client.Get(ctx, "pair:"+domain.PairKey(a, b)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.FindConversation(ctx, domain.ConversationID(id))
}

// CreateConversation claims the pair index with SETNX, so of two racing
// first-contact creators exactly one wins.
func (s *RedisStore) CreateConversation(ctx context.Context, a, b domain.UserID) (*domain.Conversation, error) {
	conv := domain.NewConversation(a, b)
	claimed, err := s.client.SetNX(ctx, "pair:"+domain.PairKey(a, b), string(conv.ID), 0).Result()
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, core.ErrAlreadyExists
	}
	if err := s.writeConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	conv, err := s.FindConversation(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.client.RPush(ctx, "msgs:"+string(conv.ID), data).Err(); err != nil {
		return err
	}
	conv.LastMessageID = msg.ID
	conv.Unread = true
	conv.UpdatedAt = time.Now()
	return s.writeConversation(ctx, conv)
}

func (s *RedisStore) MarkRead(ctx context.Context, id domain.ConversationID, _ domain.UserID) error {
	conv, err := s.FindConversation(ctx, id)
	if err != nil {
		return err
	}
	conv.Unread = false
	return s.writeConversation(ctx, conv)
}

func (s *RedisStore) writeConversation(ctx context.Context, conv *domain.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "conv:"+string(conv.ID), data, 0).Err()
}
