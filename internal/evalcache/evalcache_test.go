package evalcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thatsimonsguy/hvac-controller/internal/model"
)

func TestCache_MissThenHit(t *testing.T) {
	c := New(1000)
	now := time.Now()
	fp := Fingerprint(20.1, 5.3, 10, true, model.ModeAuto, nil, now)

	assert.False(t, c.Hit(fp, now))
	c.Record(fp, now)
	assert.True(t, c.Hit(fp, now.Add(500*time.Millisecond)))
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New(1000)
	now := time.Now()
	fp := Fingerprint(20.1, 5.3, 10, true, model.ModeAuto, nil, now)

	c.Record(fp, now)
	assert.False(t, c.Hit(fp, now.Add(1500*time.Millisecond)))
	assert.Equal(t, 0, c.Len(), "expired entry must be evicted lazily on lookup")
}

func TestCache_ZeroTTLDisablesCache(t *testing.T) {
	c := New(0)
	now := time.Now()
	fp := Fingerprint(20.1, 5.3, 10, true, model.ModeAuto, nil, now)

	c.Record(fp, now)
	assert.False(t, c.Hit(fp, now))
	assert.Equal(t, 0, c.Len())
}

func TestFingerprint_QuantizesDistinctBucketsDifferently(t *testing.T) {
	now := time.Now()
	fp1 := Fingerprint(20.04, 5.0, 10, true, model.ModeAuto, nil, now)
	fp2 := Fingerprint(20.06, 5.0, 10, true, model.ModeAuto, nil, now)
	// both floor to 200, so same bucket
	assert.Equal(t, fp1, fp2)

	fp3 := Fingerprint(20.15, 5.0, 10, true, model.ModeAuto, nil, now)
	assert.NotEqual(t, fp1, fp3)
}

// Bounded memory: eviction keeps the map from growing
// unboundedly when entries expire.
func TestEvictBounded(t *testing.T) {
	c := New(100)
	now := time.Now()
	for i := 0; i < 50; i++ {
		fp := Fingerprint(float64(i), 5.0, 10, true, model.ModeAuto, nil, now)
		c.Record(fp, now)
	}
	assert.Equal(t, 50, c.Len())

	evicted := c.Evict(now.Add(200 * time.Millisecond))
	assert.Equal(t, 50, evicted)
	assert.Equal(t, 0, c.Len())
}
