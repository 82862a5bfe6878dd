package sessionstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "turnstile:session:"
)

// saveScript keeps the largest expiry and lets redis drop the key one
// second after it, Load still checks the stored expiry.
var saveScript = redis.NewScript(`
local expiry = tonumber(ARGV[2])
local old = tonumber(redis.call("HGET", KEYS[1], "expiry") or "0")
if old > expiry then
  expiry = old
end
redis.call("HSET", KEYS[1], "data", ARGV[1], "expiry", expiry)
local ttl = expiry - tonumber(ARGV[3]) + 1
if ttl < 1 then
  ttl = 1
end
redis.call("EXPIRE", KEYS[1], ttl)
return expiry
`)

// updateScript only touches keys that still exist and are not expired,
// ARGV[4] tells whether ARGV[1] replaces the data.
var updateScript = redis.NewScript(`
local old = redis.call("HGET", KEYS[1], "expiry")
if not old then
  return 0
end
old = tonumber(old)
local now = tonumber(ARGV[3])
if old < now then
  return 0
end
local expiry = tonumber(ARGV[2])
if old > expiry then
  expiry = old
end
if ARGV[4] == "1" then
  redis.call("HSET", KEYS[1], "data", ARGV[1], "expiry", expiry)
else
  redis.call("HSET", KEYS[1], "expiry", expiry)
end
local ttl = expiry - now + 1
if ttl < 1 then
  ttl = 1
end
redis.call("EXPIRE", KEYS[1], ttl)
return 1
`)

var deleteIfExpiredScript = redis.NewScript(`
local expiry = redis.call("HGET", KEYS[1], "expiry")
if not expiry then
  return 0
end
if tonumber(expiry) < tonumber(ARGV[1]) then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type (
	Redis struct {
		client redis.UniversalClient
		prefix string
		clock  clock.Clock
	}
)

// NewRedis stores each session as a hash under prefix+id, an empty prefix
// uses "turnstile:session:".
func NewRedis(client redis.UniversalClient, prefix string, clk clock.Clock) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, clock: clk}
}

func (r *Redis) key(id string) string {
	return r.prefix + id
}

func (r *Redis) Save(ctx context.Context, rec Record) error {
	err := saveScript.Run(ctx, r.client, []string{r.key(rec.ID)},
		string(rec.Data), rec.Expiry.Unix(), r.clock.Now().Unix()).Err()
	if err != nil {
		return backendFailure("save session", err)
	}
	return nil
}

func (r *Redis) Update(ctx context.Context, rec Record) error {
	return r.update(ctx, rec.ID, string(rec.Data), true, rec.Expiry, "update session")
}

func (r *Redis) Touch(ctx context.Context, id string, expiry time.Time) error {
	return r.update(ctx, id, "", false, expiry, "touch session")
}

func (r *Redis) update(ctx context.Context, id, data string, withData bool, expiry time.Time, op string) error {
	flag := "0"
	if withData {
		flag = "1"
	}
	n, err := updateScript.Run(ctx, r.client, []string{r.key(id)},
		data, expiry.Unix(), r.clock.Now().Unix(), flag).Int64()
	if err != nil {
		return backendFailure(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) Load(ctx context.Context, id string) (*Record, error) {
	vals, err := r.client.HMGet(ctx, r.key(id), "data", "expiry").Result()
	if err != nil {
		return nil, backendFailure("load session", err)
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, ErrNotFound
	}
	rawExpiry, _ := vals[1].(string)
	expiry, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}
	rec := Record{ID: id, Data: []byte(data), Expiry: time.Unix(expiry, 0)}
	if rec.ExpiredAt(r.clock.Now()) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	err := r.client.Del(ctx, r.key(id)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return backendFailure("delete session", err)
	}
	return nil
}

func (r *Redis) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := deleteIfExpiredScript.Run(ctx, r.client, []string{iter.Val()}, now.Unix()).Int64()
		if err != nil {
			return count, backendFailure("delete expired sessions", err)
		}
		count += n
	}
	if err := iter.Err(); err != nil {
		return count, backendFailure("delete expired sessions", err)
	}
	return count, nil
}
