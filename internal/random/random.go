// Package random предоставляет источник случайных чисел, подменяемый в тестах.
package random

import (
	"crypto/rand"
	"encoding/binary"
)

// Random описывает источник случайных чисел.
type Random interface {
	// Float64 возвращает число в [0, 1).
	Float64() float64
}

// CryptoRandom реализует Random поверх crypto/rand.
type CryptoRandom struct{}

// New создаёт CryptoRandom.
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Float64 возвращает равномерно распределённое число в [0, 1).
func (r *CryptoRandom) Float64() float64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}

// Sequence возвращает заранее заданные значения по кругу. Используется в тестах.
type Sequence struct {
	values []float64
	next   int
}

// NewSequence создаёт Sequence из указанных значений.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

// Float64 возвращает следующее значение последовательности или 0, если она пуста.
func (s *Sequence) Float64() float64 {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}
