package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_CachesHits(t *testing.T) {
	p := NewStaticProvider()
	p.AddEntry("41.33.1.1", &Info{CountryCode: "EG", City: "Cairo"})

	r := NewResolver(p, 10, time.Minute, nil)

	first := r.Lookup("41.33.1.1")
	require.NotNil(t, first)
	assert.Equal(t, "Cairo", first.City)

	second := r.Lookup("41.33.1.1")
	assert.Same(t, first, second)
	assert.Equal(t, 1, p.Lookups())
}

func TestResolver_MissesAreNotCached(t *testing.T) {
	p := NewStaticProvider()
	r := NewResolver(p, 10, time.Minute, nil)

	assert.Nil(t, r.Lookup("10.0.0.1"))
	assert.Nil(t, r.Lookup("10.0.0.1"))
	assert.Equal(t, 2, p.Lookups())
	assert.Nil(t, r.Lookup("not-an-ip"))
}

func TestResolver_ExpiredEntriesReload(t *testing.T) {
	p := NewStaticProvider()
	p.AddEntry("41.33.1.1", &Info{CountryCode: "EG"})
	r := NewResolver(p, 10, -time.Second, nil)

	r.Lookup("41.33.1.1")
	r.Lookup("41.33.1.1")
	assert.Equal(t, 2, p.Lookups())
}

func TestResolver_EvictsAtCapacity(t *testing.T) {
	p := NewStaticProvider()
	ips := []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"}
	for _, ip := range ips {
		p.AddEntry(ip, &Info{CountryCode: "EG"})
	}
	r := NewResolver(p, 2, time.Minute, nil)

	for _, ip := range ips {
		require.NotNil(t, r.Lookup(ip))
	}
	assert.Equal(t, 2, r.cache.size())
}

func TestResolver_NilSafe(t *testing.T) {
	var r *Resolver
	assert.Nil(t, r.Lookup("1.1.1.1"))
	assert.NoError(t, r.Close())
	assert.Nil(t, NewResolver(nil, 0, time.Minute, nil).Lookup("1.1.1.1"))
}
