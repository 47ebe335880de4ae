package links

import (
	"sync"

	"github.com/brianvoe/gofakeit/v7"
)

// randomLinks produces placeholder destinations for seeding and for
// refilling the pool after a batch delete.
type randomLinks struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

// newRandomLinks returns a source seeded with seed; 0 picks a random seed.
func newRandomLinks(seed uint64) *randomLinks {
	return &randomLinks{faker: gofakeit.New(seed)}
}

type randomLink struct {
	url    string
	clicks int64
	status Status
}

func (r *randomLinks) next() randomLink {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := StatusActive
	if r.faker.Bool() {
		status = StatusInactive
	}
	return randomLink{
		url:    r.faker.URL(),
		clicks: int64(r.faker.IntRange(0, maxSeedClicks)),
		status: status,
	}
}

// randomLinks returns n unsaved links with random destinations, statuses and
// click counts, and freshly generated codes.
func (s *service) randomLinks(n int) ([]Link, error) {
	out := make([]Link, 0, n)
	for range n {
		rl := s.random.next()
		l, err := s.newLink(rl.url, rl.clicks, rl.status)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
