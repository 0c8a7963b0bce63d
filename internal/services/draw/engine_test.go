package draw

import (
	"errors"
	"math"
	"testing"

	"github.com/abdulaziz-python/giftme/internal/domain/model"
)

func TestDrawOneEmptyCatalog(t *testing.T) {
	engine := NewEngine(1)

	_, err := engine.DrawOne(nil)
	if !errors.Is(err, ErrNoEligiblePrizes) {
		t.Fatalf("expected ErrNoEligiblePrizes, got %v", err)
	}
}

func TestDrawOneSkipsZeroWeight(t *testing.T) {
	engine := NewEngine(1)
	prizes := []model.Prize{
		{ID: 1, Weight: 0},
		{ID: 2, Weight: 0.5},
		{ID: 3, Weight: -1},
	}

	for i := 0; i < 1000; i++ {
		prize, err := engine.DrawOne(prizes)
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if prize.ID != 2 {
			t.Fatalf("draw %d picked prize with non-positive weight: %d", i, prize.ID)
		}
	}
}

func TestDrawOneAllZeroWeights(t *testing.T) {
	engine := NewEngine(1)
	prizes := []model.Prize{
		{ID: 1, Weight: 0},
		{ID: 2, Weight: 0},
	}

	_, err := engine.DrawOne(prizes)
	if !errors.Is(err, ErrNoEligiblePrizes) {
		t.Fatalf("expected ErrNoEligiblePrizes, got %v", err)
	}
}

func TestDrawOneDistribution(t *testing.T) {
	engine := NewEngine(42)
	prizes := []model.Prize{
		{ID: 1, Weight: 0.25},
		{ID: 2, Weight: 0.20},
		{ID: 3, Weight: 0.15},
		{ID: 4, Weight: 0.10},
		{ID: 5, Weight: 0.08},
		{ID: 6, Weight: 0.05},
	}

	const draws = 100000
	counts := make(map[int64]int)
	for i := 0; i < draws; i++ {
		prize, err := engine.DrawOne(prizes)
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		counts[prize.ID]++
	}

	var total float64
	for _, p := range prizes {
		total += p.Weight
	}

	for _, p := range prizes {
		expected := p.Weight / total
		observed := float64(counts[p.ID]) / draws
		if math.Abs(observed-expected) > 0.02 {
			t.Fatalf("prize %d: observed share %.4f, expected %.4f", p.ID, observed, expected)
		}
	}
}

func TestDrawOneDeterministicWithSeed(t *testing.T) {
	prizes := []model.Prize{
		{ID: 1, Weight: 0.3},
		{ID: 2, Weight: 0.7},
	}

	first := NewEngine(7)
	second := NewEngine(7)
	for i := 0; i < 100; i++ {
		a, err := first.DrawOne(prizes)
		if err != nil {
			t.Fatalf("first engine draw %d: %v", i, err)
		}
		b, err := second.DrawOne(prizes)
		if err != nil {
			t.Fatalf("second engine draw %d: %v", i, err)
		}
		if a.ID != b.ID {
			t.Fatalf("draw %d diverged: %d vs %d", i, a.ID, b.ID)
		}
	}
}
