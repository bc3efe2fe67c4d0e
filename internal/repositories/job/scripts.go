package job

import (
	"github.com/redis/go-redis/v9"
)

// KEYS[1] job hash, KEYS[2] due zset
// ARGV[1] token, ARGV[2] now ms, ARGV[3] lease until ms, ARGV[4] job id
// The due score moves to the lease expiry so an abandoned job comes due again.
var claimScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if redis.call('HGET', KEYS[1], 'status') == 'dead' then
  return 0
end
local now = tonumber(ARGV[2])
local fire = tonumber(redis.call('HGET', KEYS[1], 'fire_at') or '0')
if fire > now then
  return 0
end
local holder = redis.call('HGET', KEYS[1], 'lock_token')
local lease = tonumber(redis.call('HGET', KEYS[1], 'locked_until') or '0')
if holder and holder ~= '' and lease > now then
  return 0
end
redis.call('HSET', KEYS[1], 'lock_token', ARGV[1], 'locked_until', ARGV[3])
redis.call('HINCRBY', KEYS[1], 'attempts', 1)
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[4])
return 1
`)

// KEYS[1] job hash, KEYS[2] due zset, KEYS[3] target set
// ARGV[1] token, ARGV[2] job id
var completeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'lock_token') ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[2])
redis.call('SREM', KEYS[3], ARGV[2])
return 1
`)

// KEYS[1] job hash, KEYS[2] due zset
// ARGV[1] token, ARGV[2] job id, ARGV[3] fire at ms, ARGV[4] last error
var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'lock_token') ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'lock_token', '', 'locked_until', '0', 'fire_at', ARGV[3], 'last_error', ARGV[4])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[2])
return 1
`)

// KEYS[1] job hash, KEYS[2] due zset, KEYS[3] dead set
// ARGV[1] token, ARGV[2] job id, ARGV[3] last error
var buryScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'lock_token') ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'lock_token', '', 'locked_until', '0', 'status', 'dead', 'last_error', ARGV[3])
redis.call('ZREM', KEYS[2], ARGV[2])
redis.call('SADD', KEYS[3], ARGV[2])
return 1
`)
