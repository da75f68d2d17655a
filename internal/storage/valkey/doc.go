// Package valkey stores documents as JSON in Valkey hashes. Each document
// hash carries a "doc" field and a "version" field; writes are
// compare-and-set on the version, run as Lua scripts so the check and the
// write are atomic on the server.
package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

// Backoff bounds between compare-and-set attempts on a contended document.
const (
	minCASBackoff = time.Millisecond
	maxCASBackoff = 50 * time.Millisecond
)

// KEYS[1] doc hash, KEYS[2] id index set, KEYS[3..] unique keys.
// ARGV[1] id, ARGV[2] json.
// Returns 1 on success, 0 if the document exists, -n if unique key n-2 is taken.
var createScript = valkey.NewLuaScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
for i = 3, #KEYS do
  if redis.call('EXISTS', KEYS[i]) == 1 then return -i end
end
redis.call('HSET', KEYS[1], 'doc', ARGV[2], 'version', 1)
redis.call('SADD', KEYS[2], ARGV[1])
for i = 3, #KEYS do
  redis.call('SET', KEYS[i], ARGV[1])
end
return 1
`)

// KEYS[1] doc hash. ARGV[1] expected version, ARGV[2] json.
var casScript = valkey.NewLuaScript(`
local v = redis.call('HGET', KEYS[1], 'version')
if v ~= ARGV[1] then return 0 end
redis.call('HSET', KEYS[1], 'doc', ARGV[2], 'version', tonumber(v) + 1)
return 1
`)

// KEYS[1] doc hash, KEYS[2] id index set, KEYS[3..] unique keys. ARGV[1] id.
var deleteScript = valkey.NewLuaScript(`
local n = redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
for i = 3, #KEYS do
  redis.call('DEL', KEYS[i])
end
return n
`)

var errUniqueTaken = errors.New("unique key taken")

// docStore is a typed collection of JSON documents under one key prefix.
type docStore[T any] struct {
	client   valkey.Client
	prefix   string
	notFound error
}

func (d *docStore[T]) key(id string) string { return d.prefix + ":" + id }

func (d *docStore[T]) indexKey() string { return d.prefix + ":ids" }

// load returns the document and its version.
func (d *docStore[T]) load(ctx context.Context, id string) (*T, string, error) {
	fields, err := d.client.Do(ctx, d.client.B().Hgetall().Key(d.key(id)).Build()).AsStrMap()
	if err != nil {
		return nil, "", fmt.Errorf("loading %s: %w", d.key(id), err)
	}
	raw, ok := fields["doc"]
	if !ok {
		return nil, "", d.notFound
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, "", fmt.Errorf("decoding %s: %w", d.key(id), err)
	}
	return &v, fields["version"], nil
}

func (d *docStore[T]) get(ctx context.Context, id string) (*T, error) {
	v, _, err := d.load(ctx, id)
	return v, err
}

// create stores a new document. uniques are full key names that must not
// exist yet; they are set to id alongside the document.
func (d *docStore[T]) create(ctx context.Context, id string, v *T, uniques ...string) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", d.key(id), err)
	}
	keys := append([]string{d.key(id), d.indexKey()}, uniques...)
	res, err := createScript.Exec(ctx, d.client, keys, []string{id, string(raw)}).AsInt64()
	if err != nil {
		return fmt.Errorf("creating %s: %w", d.key(id), err)
	}
	switch {
	case res == 1:
		return nil
	case res == 0:
		return fmt.Errorf("%w: %s exists", models.ErrConcurrentUpdate, d.key(id))
	default:
		return fmt.Errorf("%w: %s", errUniqueTaken, keys[-res-1])
	}
}

// update reads the document, applies fn to it and writes it back if the
// version has not moved. On a lost race it waits a jittered backoff and
// retries with a fresh read until ctx is done.
// ensure, when set, supplies the document to use if none is stored yet.
func (d *docStore[T]) update(ctx context.Context, id string, ensure func() *T, fn func(*T) error) (*T, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("updating %s: %w", d.key(id), err)
		}
		v, version, err := d.load(ctx, id)
		if errors.Is(err, d.notFound) && ensure != nil {
			if err := d.create(ctx, id, ensure()); err != nil && !errors.Is(err, models.ErrConcurrentUpdate) {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := fn(v); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", d.key(id), err)
		}
		ok, err := casScript.Exec(ctx, d.client, []string{d.key(id)}, []string{version, string(raw)}).AsInt64()
		if err != nil {
			return nil, fmt.Errorf("writing %s: %w", d.key(id), err)
		}
		if ok == 1 {
			return v, nil
		}

		t := time.NewTimer(casBackoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
}

// casBackoff returns a full-jitter delay for the given retry attempt.
func casBackoff(attempt int) time.Duration {
	ceiling := maxCASBackoff
	if attempt < 6 {
		ceiling = min(minCASBackoff<<attempt, maxCASBackoff)
	}
	return minCASBackoff/2 + rand.N(ceiling)
}

func (d *docStore[T]) remove(ctx context.Context, id string, uniques ...string) (bool, error) {
	keys := append([]string{d.key(id), d.indexKey()}, uniques...)
	n, err := deleteScript.Exec(ctx, d.client, keys, []string{id}).AsInt64()
	if err != nil {
		return false, fmt.Errorf("deleting %s: %w", d.key(id), err)
	}
	return n > 0, nil
}

func (d *docStore[T]) ids(ctx context.Context) ([]string, error) {
	ids, err := d.client.Do(ctx, d.client.B().Smembers().Key(d.indexKey()).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.indexKey(), err)
	}
	return ids, nil
}

// lookup resolves a unique key to the id stored under it.
func (d *docStore[T]) lookup(ctx context.Context, key string) (string, error) {
	id, err := d.client.Do(ctx, d.client.B().Get().Key(key).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", d.notFound
	}
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", key, err)
	}
	return id, nil
}

func formatGroupID(id int64) string {
	return strconv.FormatInt(id, 10)
}
