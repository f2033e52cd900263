package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Document is a schemaless record; values must be JSON encodable.
type Document map[string]interface{}

// idField carries a document's identifier in documents returned by the store.
const idField = "_id"

const (
	scanBatch     = 100
	maxTxAttempts = 3
)

// RedisStore provides document persistence in Redis.
//
// Every document lives in its own hash whose fields hold JSON encoded
// values. Each collection keeps a sorted set of ids scored by insertion
// sequence so listings come back in creation order.
type RedisStore struct {
	client *redis.Client
	name   string
}

// NewRedisStore creates a new RedisStore namespaced under name. A nil
// client yields a store on which every operation fails with
// ErrStorageUnavailable.
func NewRedisStore(client *redis.Client, name string) *RedisStore {
	return &RedisStore{client: client, name: name}
}

// Available reports whether the store has a connection.
func (s *RedisStore) Available() bool {
	return s != nil && s.client != nil
}

// Name returns the database name the store is namespaced under.
func (s *RedisStore) Name() string {
	return s.name
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if !s.Available() {
		return ErrStorageUnavailable
	}
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	if !s.Available() {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) docKey(collection, id string) string {
	return fmt.Sprintf("%s:%s:%s", s.name, collection, id)
}

func (s *RedisStore) indexKey(collection string) string {
	return fmt.Sprintf("%s:%s", s.name, collection)
}

func (s *RedisStore) seqKey(collection string) string {
	return fmt.Sprintf("%s:%s:seq", s.name, collection)
}

func (s *RedisStore) collectionsKey() string {
	return s.name + ":collections"
}

// CreateDocument inserts doc into collection and returns its new id.
func (s *RedisStore) CreateDocument(ctx context.Context, collection string, doc Document) (string, error) {
	if !s.Available() {
		return "", ErrStorageUnavailable
	}
	fields, err := encodeFields(doc)
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "", fmt.Errorf("empty document")
	}
	seq, err := s.client.Incr(ctx, s.seqKey(collection)).Result()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.docKey(collection, id), fields)
		pipe.ZAdd(ctx, s.indexKey(collection), &redis.Z{Score: float64(seq), Member: id})
		pipe.SAdd(ctx, s.collectionsKey(), collection)
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetDocuments returns up to limit documents of collection whose fields
// equal every value in filter. A limit of 0 returns all matches.
func (s *RedisStore) GetDocuments(ctx context.Context, collection string, filter Document, limit int64) ([]Document, error) {
	if !s.Available() {
		return nil, ErrStorageUnavailable
	}
	want, err := encodeFields(filter)
	if err != nil {
		return nil, err
	}

	docs := []Document{}
	for start := int64(0); ; start += scanBatch {
		ids, err := s.client.ZRange(ctx, s.indexKey(collection), start, start+scanBatch-1).Result()
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return docs, nil
		}

		pipe := s.client.Pipeline()
		cmds := make([]*redis.StringStringMapCmd, len(ids))
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.docKey(collection, id))
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}

		for i, cmd := range cmds {
			raw := cmd.Val()
			// removed between the index read and the fetch
			if len(raw) == 0 || !matches(raw, want) {
				continue
			}
			doc, err := decodeFields(raw)
			if err != nil {
				return nil, fmt.Errorf("decoding %s: %w", ids[i], err)
			}
			doc[idField] = ids[i]
			docs = append(docs, doc)
			if limit > 0 && int64(len(docs)) >= limit {
				return docs, nil
			}
		}
		if len(ids) < scanBatch {
			return docs, nil
		}
	}
}

// UpdateOne merges fields into the document with the given id and returns
// the number of documents matched.
func (s *RedisStore) UpdateOne(ctx context.Context, collection, id string, fields Document) (int64, error) {
	if !s.Available() {
		return 0, ErrStorageUnavailable
	}
	enc, err := encodeFields(fields)
	if err != nil {
		return 0, err
	}
	key := s.docKey(collection, id)

	var matched int64
	update := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		matched = n
		if n == 0 || len(enc) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, enc)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.client.Watch(ctx, update, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return 0, err
	}
	return matched, nil
}

// DeleteOne removes the document with the given id and returns the number
// of documents deleted.
func (s *RedisStore) DeleteOne(ctx context.Context, collection, id string) (int64, error) {
	if !s.Available() {
		return 0, ErrStorageUnavailable
	}
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.docKey(collection, id))
		pipe.ZRem(ctx, s.indexKey(collection), id)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return del.Val(), nil
}

// ListCollections returns the names of all collections, sorted.
func (s *RedisStore) ListCollections(ctx context.Context) ([]string, error) {
	if !s.Available() {
		return nil, ErrStorageUnavailable
	}
	names, err := s.client.SMembers(ctx, s.collectionsKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func encodeFields(doc Document) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k == idField {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", k, err)
		}
		out[k] = string(b)
	}
	return out, nil
}

func decodeFields(raw map[string]string) (Document, error) {
	doc := make(Document, len(raw)+1)
	for k, v := range raw {
		var val interface{}
		if err := json.Unmarshal([]byte(v), &val); err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		doc[k] = val
	}
	return doc, nil
}

func matches(raw map[string]string, want map[string]interface{}) bool {
	for k, v := range want {
		if raw[k] != v.(string) {
			return false
		}
	}
	return true
}
