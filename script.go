package quota

import "github.com/redis/go-redis/v9"

// Counters are hashes with two fields:
//
//	v   = units spent in the current window
//	ver = opaque version, replaced by a fresh token on every write
//
// Versions are random rather than sequential so a read taken in an expired
// window can never match the version of the window that replaced it.

var luaReadScript = redis.NewScript(`
-- KEYS[1] = counter hash
local vals = redis.call("HMGET", KEYS[1], "v", "ver")
if not vals[1] or not vals[2] then
  return false
end
local ttl = redis.call("PTTL", KEYS[1])
return {vals[1], vals[2], ttl}
`)

var luaInsertScript = redis.NewScript(`
-- KEYS[1] = counter hash
-- ARGV[1] = initial value
-- ARGV[2] = ttl_ms
-- ARGV[3] = new version
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "v", ARGV[1], "ver", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return 1
`)

var luaCompareAndSwapScript = redis.NewScript(`
-- KEYS[1] = counter hash
-- ARGV[1] = expected version
-- ARGV[2] = new value
-- ARGV[3] = new version
-- ARGV[4] = ttl_ms (<= 0 keeps the remaining ttl)
local ver = redis.call("HGET", KEYS[1], "ver")
if ver ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "v", ARGV[2], "ver", ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1
`)
