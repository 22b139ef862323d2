package remote

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Push keys are 20 chars: 8 encoding the millisecond timestamp followed by
// 12 random chars, over an alphabet whose byte order matches its lexical
// order. Keys therefore sort chronologically, and a message id can be
// chosen locally before the write that carries it.
const pushAlphabet = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

var (
	pushMu         sync.Mutex
	lastPushMillis int64
	lastRand       [12]int
)

// PushID allocates a new push key. Keys generated within the same
// millisecond increment the random suffix so ordering still holds.
func PushID() string {
	pushMu.Lock()
	defer pushMu.Unlock()

	now := time.Now().UnixMilli()
	if now == lastPushMillis {
		// Same millisecond: bump the previous suffix.
		for i := 11; i >= 0; i-- {
			if lastRand[i] != 63 {
				lastRand[i]++
				break
			}
			lastRand[i] = 0
		}
	} else {
		for i := range lastRand {
			lastRand[i] = int(rand.Uint32N(64))
		}
	}
	lastPushMillis = now

	var id [20]byte
	ts := now
	for i := 7; i >= 0; i-- {
		id[i] = pushAlphabet[ts%64]
		ts /= 64
	}
	for i, r := range lastRand {
		id[8+i] = pushAlphabet[r]
	}
	return string(id[:])
}
