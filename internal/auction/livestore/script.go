package livestore

import "github.com/redis/go-redis/v9"

// admissionScript is the server-side atomic admission rule: the base price
// and increment checks run inside one Lua script so a racing bid can never
// be admitted between the read and the write. The self-outbid check is not
// part of the script; the bid engine runs it before calling Admit.
// It runs over three keys (highest, bid-set, state-hash) so a concurrent
// admission against the same auction can never interleave with this one:
// Redis executes Lua scripts to completion before serving the next command.
//
// KEYS[1] = highest string key
// KEYS[2] = bid-set (sorted set) key
// KEYS[3] = state hash key
// ARGV[1] = amount, integer cents
// ARGV[2] = bid envelope JSON (zset member)
// ARGV[3] = bidder id
// ARGV[4] = base price, integer cents
// ARGV[5] = min increment, basis points (10.00% == 1000)
//
// Returns {code, payload...}:
//
//	code=1   accepted; no payload
//	code=-1  below increment; payload = {currentHighest, minimumRequired}
//	code=-3  below base price; payload = {basePrice}
var admissionScript = redis.NewScript(`
local highest = tonumber(redis.call("GET", KEYS[1]))
local amount = tonumber(ARGV[1])
local basePrice = tonumber(ARGV[4])
local incrementBp = tonumber(ARGV[5])

if not highest or highest == 0 then
	if amount < basePrice then
		return {-3, tostring(basePrice)}
	end
else
	local minRequired = math.ceil(highest * (10000 + incrementBp) / 10000)
	if amount < minRequired then
		return {-1, tostring(highest), tostring(minRequired)}
	end
end

redis.call("SET", KEYS[1], tostring(amount))
redis.call("ZADD", KEYS[2], amount, ARGV[2])
redis.call("HSET", KEYS[3], "highestBid", tostring(amount), "highestBidder", ARGV[3])

return {1}
`)
