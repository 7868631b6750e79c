// Package placement подбирает координаты новой звезды так, чтобы она не
// перекрывала элементы интерфейса и уже известные звёзды.
//
// Подбор носит рекомендательный характер: он работает по снимку неба и не
// гарантирует отсутствия наложений после сохранения.
package placement

import (
	"errors"
	"math"

	"github.com/mmeshcher/starsky/internal/random"
)

// ErrSkyTooCrowded возвращается, если за отведённое число попыток не нашлось свободного места.
var ErrSkyTooCrowded = errors.New("sky too crowded")

// Point задаёт точку на холсте неба.
type Point struct {
	X float64
	Y float64
}

// Rect описывает прямоугольную область холста, включая границы.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Contains сообщает, лежит ли точка внутри области.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// Config задаёт параметры подбора.
type Config struct {
	Width       float64
	Height      float64
	MinDistance float64
	MaxAttempts int
	// Reserved содержит области, занятые элементами интерфейса.
	Reserved []Rect

	MinSize, MaxSize             float64
	MinBrightness, MaxBrightness float64
}

// DefaultConfig возвращает параметры для холста 100×100 в процентах экрана.
func DefaultConfig() Config {
	return Config{
		Width:       100,
		Height:      100,
		MinDistance: 4,
		MaxAttempts: 60,
		Reserved: []Rect{
			{MinX: 0, MinY: 0, MaxX: 100, MaxY: 8},     // шапка
			{MinX: 0, MinY: 88, MaxX: 20, MaxY: 100},   // меню
			{MinX: 80, MinY: 88, MaxX: 100, MaxY: 100}, // кнопки управления
		},
		MinSize:       1,
		MaxSize:       3,
		MinBrightness: 0.4,
		MaxBrightness: 1,
	}
}

// Sampler подбирает координаты и внешний вид звезды.
type Sampler struct {
	cfg Config
	rnd random.Random
}

// NewSampler создаёт Sampler. Нулевое число попыток заменяется значением по умолчанию.
func NewSampler(cfg Config, rnd random.Random) *Sampler {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Sampler{cfg: cfg, rnd: rnd}
}

// Place выбирает точку вне зарезервированных областей и не ближе MinDistance к
// существующим звёздам.
func (s *Sampler) Place(existing []Point) (Point, error) {
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		p := Point{
			X: s.rnd.Float64() * s.cfg.Width,
			Y: s.rnd.Float64() * s.cfg.Height,
		}
		if s.Acceptable(p, existing) {
			return p, nil
		}
	}
	return Point{}, ErrSkyTooCrowded
}

// Acceptable проверяет кандидата по тем же правилам, что и Place.
func (s *Sampler) Acceptable(p Point, existing []Point) bool {
	if !s.InBounds(p) {
		return false
	}
	for _, r := range s.cfg.Reserved {
		if r.Contains(p) {
			return false
		}
	}
	for _, e := range existing {
		if math.Hypot(p.X-e.X, p.Y-e.Y) < s.cfg.MinDistance {
			return false
		}
	}
	return true
}

// InBounds сообщает, лежит ли точка на холсте.
func (s *Sampler) InBounds(p Point) bool {
	return p.X >= 0 && p.X <= s.cfg.Width && p.Y >= 0 && p.Y <= s.cfg.Height
}

// Appearance выбирает размер и яркость звезды.
func (s *Sampler) Appearance() (size, brightness float64) {
	size = s.cfg.MinSize + s.rnd.Float64()*(s.cfg.MaxSize-s.cfg.MinSize)
	brightness = s.cfg.MinBrightness + s.rnd.Float64()*(s.cfg.MaxBrightness-s.cfg.MinBrightness)
	return size, brightness
}
