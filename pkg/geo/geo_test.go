package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	saoPaulo := Point{Latitude: -23.5505, Longitude: -46.6333}
	rio := Point{Latitude: -22.9068, Longitude: -43.1729}

	tests := []struct {
		name string
		a, b Point
		want float64
		tol  float64
	}{
		{"same point", saoPaulo, saoPaulo, 0, 1e-9},
		{"sao paulo to rio", saoPaulo, rio, 361000, 3000},
		{"one degree of latitude", Point{0, 0}, Point{1, 0}, 111195, 5},
		{"one degree of longitude at equator", Point{0, 0}, Point{0, 1}, 111195, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.a, tt.b), tt.tol)
		})
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := Point{Latitude: -23.5614, Longitude: -46.6559}
	b := Point{Latitude: -23.5620, Longitude: -46.6570}

	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}
