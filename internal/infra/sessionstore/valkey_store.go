package sessionstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/fittrack/internal/domain/auth"
)

// Members are token digests scored by insertion time in microseconds, so the
// lowest ranks are always the oldest sessions.
var addScript = valkey.NewLuaScript(`
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
local limit = tonumber(ARGV[3])
if limit > 0 then
  redis.call('ZREMRANGEBYRANK', KEYS[1], 0, -(limit + 1))
end
local ttl = tonumber(ARGV[4])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`)

var rotateScript = valkey.NewLuaScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[2])
local limit = tonumber(ARGV[4])
if limit > 0 then
  redis.call('ZREMRANGEBYRANK', KEYS[1], 0, -(limit + 1))
end
local ttl = tonumber(ARGV[5])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`)

// ValkeyStore keeps each user's refresh-token registry in a Valkey sorted set.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewValkeyStore constructs a store. ttl is applied to the whole set on every insert so an
// abandoned registry disappears once its newest token could no longer be valid.
func NewValkeyStore(client valkey.Client, prefix string, ttl time.Duration) *ValkeyStore {
	if prefix == "" {
		prefix = "fittrack"
	}
	return &ValkeyStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *ValkeyStore) AddSession(ctx context.Context, userID int64, digest string, limit int) error {
	args := []string{digest, s.score(), strconv.Itoa(limit), s.ttlMillis()}
	return addScript.Exec(ctx, s.client, []string{s.key(userID)}, args).Error()
}

func (s *ValkeyStore) RotateSession(ctx context.Context, userID int64, oldDigest, newDigest string, limit int) (bool, error) {
	args := []string{oldDigest, newDigest, s.score(), strconv.Itoa(limit), s.ttlMillis()}
	rotated, err := rotateScript.Exec(ctx, s.client, []string{s.key(userID)}, args).AsInt64()
	if err != nil {
		return false, err
	}
	return rotated == 1, nil
}

func (s *ValkeyStore) RemoveSession(ctx context.Context, userID int64, digest string) error {
	return s.client.Do(ctx, s.client.B().Zrem().Key(s.key(userID)).Member(digest).Build()).Error()
}

func (s *ValkeyStore) RemoveAllSessions(ctx context.Context, userID int64) error {
	return s.client.Do(ctx, s.client.B().Del().Key(s.key(userID)).Build()).Error()
}

func (s *ValkeyStore) HasSession(ctx context.Context, userID int64, digest string) (bool, error) {
	err := s.client.Do(ctx, s.client.B().Zscore().Key(s.key(userID)).Member(digest).Build()).Error()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ValkeyStore) key(userID int64) string {
	return fmt.Sprintf("%s:sessions:%d", s.prefix, userID)
}

func (s *ValkeyStore) score() string {
	return strconv.FormatInt(s.now().UnixMicro(), 10)
}

func (s *ValkeyStore) ttlMillis() string {
	return strconv.FormatInt(s.ttl.Milliseconds(), 10)
}

var _ auth.SessionStore = (*ValkeyStore)(nil)
