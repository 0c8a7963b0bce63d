package draw

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/abdulaziz-python/giftme/internal/domain/model"
)

var ErrNoEligiblePrizes = errors.New("no eligible prizes to draw from")

// Engine is a weighted sampler over prize catalogs. Weights are
// unnormalized masses; each draw normalizes over the set it is handed,
// so deactivating a prize automatically redistributes its share.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine seeds the sampler. seed <= 0 picks a time-based seed; tests
// pass a fixed one for reproducible sequences.
func NewEngine(seed int64) *Engine {
	if seed <= 0 {
		seed = time.Now().UnixNano()
	}
	return &Engine{rng: rand.New(rand.NewSource(seed))}
}

// DrawOne samples one prize proportionally to weight. Prizes with a
// non-positive weight never win. An empty or all-zero-weight set yields
// ErrNoEligiblePrizes.
func (e *Engine) DrawOne(prizes []model.Prize) (model.Prize, error) {
	var total float64
	for _, p := range prizes {
		if p.Weight > 0 {
			total += p.Weight
		}
	}
	if total <= 0 {
		return model.Prize{}, ErrNoEligiblePrizes
	}

	e.mu.Lock()
	point := e.rng.Float64() * total
	e.mu.Unlock()

	var cumulative float64
	for _, p := range prizes {
		if p.Weight <= 0 {
			continue
		}
		cumulative += p.Weight
		if point < cumulative {
			return p, nil
		}
	}

	// Float accumulation can land point a hair past the last bucket.
	for i := len(prizes) - 1; i >= 0; i-- {
		if prizes[i].Weight > 0 {
			return prizes[i], nil
		}
	}
	return model.Prize{}, ErrNoEligiblePrizes
}
