package placement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/starsky/internal/random"
)

func TestPlace_SkipsReservedRegions(t *testing.T) {
	// Первая точка (50, 2) попадает в шапку, вторая (50, 50) свободна.
	rnd := random.NewSequence(0.5, 0.02, 0.5, 0.5)
	s := NewSampler(DefaultConfig(), rnd)

	p, err := s.Place(nil)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 50, Y: 50}, p)
}

func TestPlace_KeepsMinimumDistance(t *testing.T) {
	rnd := random.NewSequence(0.5, 0.5, 0.51, 0.51, 0.7, 0.5)
	s := NewSampler(DefaultConfig(), rnd)

	p, err := s.Place([]Point{{X: 50, Y: 50}})
	require.NoError(t, err)
	assert.Equal(t, Point{X: 70, Y: 50}, p)
}

func TestPlace_TooCrowded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 5
	s := NewSampler(cfg, random.NewSequence(0.5, 0.5))

	_, err := s.Place([]Point{{X: 50, Y: 50}})
	assert.True(t, errors.Is(err, ErrSkyTooCrowded))
}

func TestPlace_RandomSourceStaysOnCanvas(t *testing.T) {
	s := NewSampler(DefaultConfig(), random.New())

	var placed []Point
	for i := 0; i < 20; i++ {
		p, err := s.Place(placed)
		require.NoError(t, err)
		require.True(t, s.Acceptable(p, placed), "point %+v violates placement rules", p)
		placed = append(placed, p)
	}
}

func TestAcceptable(t *testing.T) {
	s := NewSampler(DefaultConfig(), random.NewSequence())

	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{name: "open sky", p: Point{X: 40, Y: 40}, want: true},
		{name: "header", p: Point{X: 40, Y: 4}, want: false},
		{name: "menu corner", p: Point{X: 10, Y: 95}, want: false},
		{name: "controls corner", p: Point{X: 90, Y: 95}, want: false},
		{name: "off canvas", p: Point{X: 140, Y: 40}, want: false},
		{name: "too close", p: Point{X: 61, Y: 61}, want: false},
	}

	existing := []Point{{X: 60, Y: 60}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Acceptable(tt.p, existing))
		})
	}
}

func TestAppearance(t *testing.T) {
	s := NewSampler(DefaultConfig(), random.NewSequence(0.5, 1))

	size, brightness := s.Appearance()
	assert.InDelta(t, 2.0, size, 1e-9)
	assert.InDelta(t, 1.0, brightness, 1e-9)
}
