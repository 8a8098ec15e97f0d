// Package redis provides a Redis implementation of document.Store.
// Writes and their unique index entries are applied atomically via Lua scripts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

const (
	resultOK          = "ok"
	resultDuplicateID = "duplicate_id"
	resultNotFound    = "not_found"
	resultDuplicate   = "duplicate_key"
	resultStaleIndex  = "stale_index"
)

// Storage implements document.Store, document.Indexer and document.Deleter
// using Redis.
//
// Key layout for a collection. The braces are a hash tag: every key of a
// collection lives in one slot, so scripts also run on Redis Cluster and Ring.
//
//	<prefix>{<collection>}:<id>           document JSON
//	<prefix>{<collection>}:<id>:unique    hash of the document's index entries
//	<prefix>{<collection>}:__ids          set of document ids
//	<prefix>{<collection>}:__indexes      set of unique fields
//	<prefix>{<collection>}:__unique:<f>   hash of value -> document id
type Storage struct {
	client  redis.UniversalClient
	config  Config
	scripts map[string]*redis.Script
}

// Config holds Redis storage configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "stripecustomers:")
	KeyPrefix string

	// MaxRetries bounds how often a write is retried when a unique index is
	// added concurrently (default: 3)
	MaxRetries int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix:  "stripecustomers:",
		MaxRetries: 3,
	}
}

// New creates a new Redis storage adapter
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	// Set defaults
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultConfig().KeyPrefix
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}

	s := &Storage{
		client:  client,
		config:  config,
		scripts: make(map[string]*redis.Script),
	}

	// Load Lua scripts
	s.loadScripts()

	return s, nil
}

// scriptPrelude is shared by put and delete. Both take
//
//	KEYS: docKey, metaKey, indexSet, idSet, one unique hash per field
//	ARGV: id, fieldCount, ...
//
// and name the fields at ARGV[first..], in KEYS order.
const scriptPrelude = `
	local function uniqueHashes(first)
		local fieldCount = tonumber(ARGV[2])
		-- A unique index was added after the caller read the index set
		if redis.call('SCARD', KEYS[3]) ~= fieldCount then
			return nil
		end
		local hashes = {}
		for i = 1, fieldCount do
			hashes[ARGV[first + i - 1]] = KEYS[4 + i]
		end
		return hashes
	end

	-- Drop the previous entries of this document
	local function unindex(hashes, id)
		local old = redis.call('HGETALL', KEYS[2])
		for i = 1, #old, 2 do
			local hash = hashes[old[i]]
			if hash and redis.call('HGET', hash, old[i + 1]) == id then
				redis.call('HDEL', hash, old[i + 1])
			end
		end
		redis.call('DEL', KEYS[2])
	end
`

// loadScripts loads and compiles Lua scripts for atomic operations.
// Scripts only touch the keys they are given.
func (s *Storage) loadScripts() {
	// Insert or replace a document together with its unique index entries.
	// ARGV: id, fieldCount, mode, data, field names, field values.
	// A value of "" means not indexed.
	s.scripts["put"] = redis.NewScript(scriptPrelude + `
		local id = ARGV[1]
		local fieldCount = tonumber(ARGV[2])
		local mode = ARGV[3]

		local hashes = uniqueHashes(5)
		if not hashes then
			return 'stale_index'
		end

		local exists = redis.call('EXISTS', KEYS[1])
		if mode == 'insert' and exists == 1 then
			return 'duplicate_id'
		end
		if mode == 'replace' and exists == 0 then
			return 'not_found'
		end

		for i = 1, fieldCount do
			local value = ARGV[4 + fieldCount + i]
			if value ~= '' then
				local owner = redis.call('HGET', KEYS[4 + i], value)
				if owner and owner ~= id then
					return 'duplicate_key:' .. ARGV[4 + i]
				end
			end
		end

		unindex(hashes, id)
		for i = 1, fieldCount do
			local value = ARGV[4 + fieldCount + i]
			if value ~= '' then
				redis.call('HSET', KEYS[4 + i], value, id)
				redis.call('HSET', KEYS[2], ARGV[4 + i], value)
			end
		end

		redis.call('SET', KEYS[1], ARGV[4])
		redis.call('SADD', KEYS[4], id)
		return 'ok'
	`)

	// Remove a document and release its unique index entries.
	// ARGV: id, fieldCount, field names.
	s.scripts["delete"] = redis.NewScript(scriptPrelude + `
		local id = ARGV[1]

		local hashes = uniqueHashes(3)
		if not hashes then
			return 'stale_index'
		end

		unindex(hashes, id)
		redis.call('DEL', KEYS[1])
		redis.call('SREM', KEYS[4], id)
		return 'ok'
	`)

	// Index one existing document under a newly added unique field
	s.scripts["backfill"] = redis.NewScript(`
		local uniqueKey = KEYS[1]
		local metaKey = KEYS[2]
		local id = ARGV[1]
		local field = ARGV[2]
		local value = ARGV[3]

		local owner = redis.call('HGET', uniqueKey, value)
		if owner and owner ~= id then
			return 'duplicate_key:' .. field
		end
		redis.call('HSET', uniqueKey, value, id)
		redis.call('HSET', metaKey, field, value)
		return 'ok'
	`)
}

// Insert implements document.Store
func (s *Storage) Insert(ctx context.Context, collection, id string, data map[string]any) error {
	return s.put(ctx, "insert", collection, id, data)
}

// Replace implements document.Store
func (s *Storage) Replace(ctx context.Context, collection, id string, data map[string]any) error {
	return s.put(ctx, "replace", collection, id, data)
}

func (s *Storage) put(ctx context.Context, mode, collection, id string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	res, err := s.runIndexed(ctx, "put", mode, collection, id, func(fields []string) ([]any, error) {
		args := []any{id, len(fields), mode, string(payload)}
		for _, field := range fields {
			args = append(args, field)
		}
		for _, field := range fields {
			value, _ := document.IndexValue(data, field)
			args = append(args, value)
		}
		return args, nil
	})
	if err != nil {
		return err
	}

	switch {
	case res == resultOK:
		return nil
	case res == resultDuplicateID:
		return fmt.Errorf("%w: %s/%s", document.ErrDuplicateKey, collection, id)
	case res == resultNotFound:
		return fmt.Errorf("%w: %s/%s", document.ErrNotFound, collection, id)
	case strings.HasPrefix(res, resultDuplicate):
		return fmt.Errorf("%w: %s.%s", document.ErrDuplicateKey, collection, strings.TrimPrefix(res, resultDuplicate+":"))
	default:
		return fmt.Errorf("unexpected script result %q", res)
	}
}

// Delete implements document.Deleter
func (s *Storage) Delete(ctx context.Context, collection, id string) error {
	res, err := s.runIndexed(ctx, "delete", "delete", collection, id, func(fields []string) ([]any, error) {
		args := []any{id, len(fields)}
		for _, field := range fields {
			args = append(args, field)
		}
		return args, nil
	})
	if err != nil {
		return err
	}
	if res != resultOK {
		return fmt.Errorf("unexpected script result %q", res)
	}
	return nil
}

// runIndexed runs script with the collection's current unique fields,
// retrying while indexes are added concurrently
func (s *Storage) runIndexed(ctx context.Context, script, op, collection, id string, argsFor func(fields []string) ([]any, error)) (string, error) {
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		fields, err := s.client.SMembers(ctx, s.indexSetKey(collection)).Result()
		if err != nil {
			return "", fmt.Errorf("failed to read unique indexes: %w", err)
		}

		args, err := argsFor(fields)
		if err != nil {
			return "", err
		}

		res, err := s.scripts[script].Run(ctx, s.client, s.scriptKeys(collection, id, fields), args...).Text()
		if err != nil {
			return "", fmt.Errorf("failed to %s document: %w", op, err)
		}
		if res != resultStaleIndex {
			return res, nil
		}
	}
	return "", fmt.Errorf("failed to %s document: unique indexes kept changing", op)
}

// scriptKeys lists every key the put and delete scripts may touch
func (s *Storage) scriptKeys(collection, id string, fields []string) []string {
	keys := []string{
		s.docKey(collection, id),
		s.metaKey(collection, id),
		s.indexSetKey(collection),
		s.idSetKey(collection),
	}
	for _, field := range fields {
		keys = append(keys, s.uniqueKey(collection, field))
	}
	return keys
}

// Get implements document.Store
func (s *Storage) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	raw, err := s.client.Get(ctx, s.docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s/%s", document.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return data, nil
}

// EnsureUniqueIndex implements document.Indexer.
// The field is registered first so concurrent writers start maintaining it,
// then existing documents are backfilled.
func (s *Storage) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	if err := document.ValidatePath(field); err != nil {
		return err
	}

	added, err := s.client.SAdd(ctx, s.indexSetKey(collection), field).Result()
	if err != nil {
		return fmt.Errorf("failed to register unique index: %w", err)
	}
	if added == 0 {
		return nil
	}

	var cursor uint64
	for {
		ids, next, err := s.client.SScan(ctx, s.idSetKey(collection), cursor, "", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan documents: %w", err)
		}
		for _, id := range ids {
			if err := s.backfill(ctx, collection, id, field); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *Storage) backfill(ctx context.Context, collection, id, field string) error {
	data, err := s.Get(ctx, collection, id)
	if errors.Is(err, document.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	value, ok := document.IndexValue(data, field)
	if !ok {
		return nil
	}

	res, err := s.scripts["backfill"].Run(
		ctx,
		s.client,
		[]string{s.uniqueKey(collection, field), s.metaKey(collection, id)},
		id, field, value,
	).Text()
	if err != nil {
		return fmt.Errorf("failed to index document %s: %w", id, err)
	}
	if res != resultOK {
		return fmt.Errorf("%w: %s.%s", document.ErrDuplicateKey, collection, field)
	}
	return nil
}

// Close closes the Redis client connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// collectionKey is the hash-tagged root of every key in collection
func (s *Storage) collectionKey(collection string) string {
	return s.config.KeyPrefix + "{" + collection + "}:"
}

func (s *Storage) docKey(collection, id string) string {
	return s.collectionKey(collection) + id
}

func (s *Storage) metaKey(collection, id string) string {
	return s.docKey(collection, id) + ":unique"
}

func (s *Storage) idSetKey(collection string) string {
	return s.collectionKey(collection) + "__ids"
}

func (s *Storage) indexSetKey(collection string) string {
	return s.collectionKey(collection) + "__indexes"
}

func (s *Storage) uniqueKey(collection, field string) string {
	return s.collectionKey(collection) + "__unique:" + field
}
