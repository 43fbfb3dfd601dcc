package services

import (
	"math/rand"
	"sync"
	"time"
)

// DateLayout is the calendar-date key used for quest days and streaks.
const DateLayout = "2006-01-02"

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// RandomSource picks catalog entries. Injected so quest generation is reproducible.
type RandomSource interface {
	Intn(n int) int
}

// SeededRandom is a goroutine-safe math/rand source.
type SeededRandom struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSeededRandom(seed int64) *SeededRandom {
	return &SeededRandom{rnd: rand.New(rand.NewSource(seed))}
}

func (r *SeededRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}

func dateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
