package blob

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore() (*Store, *clock) {
	clk := &clock{now: time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)}
	s := NewStore(DefaultTTL)
	s.NowFunc = clk.Now
	return s, clk
}

func TestStore_PutGet(t *testing.T) {
	s, clk := newTestStore()
	data := []byte("%PDF-1.4 report")

	id := s.Put(data, "report.pdf")
	require.NotEmpty(t, id)

	entry, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, entry.ID)
	assert.Equal(t, data, entry.Data)
	assert.Equal(t, "report.pdf", entry.FileName)
	assert.Equal(t, clk.Now().Add(DefaultTTL), entry.ExpiresAt)

	_, ok = s.Get(id)
	assert.False(t, ok, "second read")
	assert.Equal(t, 0, s.Len())
}

func TestStore_GetAbsent(t *testing.T) {
	s, clk := newTestStore()

	_, ok := s.Get("never-issued")
	assert.False(t, ok)

	tests := []struct {
		name    string
		elapsed time.Duration
		wantOk  bool
	}{
		{name: "fresh", elapsed: 0, wantOk: true},
		{name: "just before expiry", elapsed: DefaultTTL - time.Second, wantOk: true},
		{name: "at expiry", elapsed: DefaultTTL},
		{name: "long expired", elapsed: time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := s.Put([]byte("x"), "x.csv")
			clk.Add(tt.elapsed)
			_, ok := s.Get(id)
			assert.Equal(t, tt.wantOk, ok)
		})
	}
}

func TestStore_ExpiredNotSweptIsAbsent(t *testing.T) {
	s, clk := newTestStore()
	id := s.Put([]byte("x"), "x.csv")
	clk.Add(6 * time.Minute)

	// no Put since: the entry is still held but must not be returned
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get(id)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStore_PutSweepsExpired(t *testing.T) {
	s, clk := newTestStore()
	old1 := s.Put([]byte("1"), "1.csv")
	old2 := s.Put([]byte("2"), "2.csv")
	clk.Add(DefaultTTL)

	fresh := s.Put([]byte("3"), "3.csv")
	assert.Equal(t, 1, s.Len())

	_, ok := s.Get(old1)
	assert.False(t, ok)
	_, ok = s.Get(old2)
	assert.False(t, ok)
	_, ok = s.Get(fresh)
	assert.True(t, ok)
}

func TestStore_UniqueIDs(t *testing.T) {
	s := NewStore(0)
	assert.Equal(t, DefaultTTL, s.ttl)

	ids := make(map[string]struct{})
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := s.Put([]byte("x"), "x.csv")
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 100)

	// every id is retrievable exactly once, even under concurrent reads
	var hits int
	for id := range ids {
		id := id
		results := make(chan bool, 2)
		for j := 0; j < 2; j++ {
			go func() {
				_, ok := s.Get(id)
				results <- ok
			}()
		}
		r1, r2 := <-results, <-results
		assert.NotEqual(t, r1, r2)
		if r1 || r2 {
			hits++
		}
	}
	assert.Equal(t, 100, hits)
}
