package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Point
		wantKm float64
		tolKm  float64
	}{
		{"same point", Point{X: 13.4, Y: 52.5}, Point{X: 13.4, Y: 52.5}, 0, 0},
		{"one degree lng on equator", Point{X: 0, Y: 0}, Point{X: 1, Y: 0}, 111.19, 0.2},
		{"one degree lat", Point{X: 0, Y: 0}, Point{X: 0, Y: 1}, 111.19, 0.2},
		{"berlin alex to brandenburg gate", Point{X: 13.4132, Y: 52.5219}, Point{X: 13.3777, Y: 52.5163}, 2.48, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolKm {
				t.Fatalf("HaversineKm = %v, want %v ± %v", got, tt.wantKm, tt.tolKm)
			}
			// Symmetric.
			if rev := HaversineKm(tt.b, tt.a); rev != got {
				t.Fatalf("HaversineKm not symmetric: %v vs %v", got, rev)
			}
		})
	}
}

func TestLerp(t *testing.T) {
	a := Point{X: 0, Y: 0}
	b := Point{X: 10, Y: -4}

	if got := Lerp(a, b, 0); got != a {
		t.Fatalf("Lerp(0) = %+v, want %+v", got, a)
	}
	if got := Lerp(a, b, 1); got != b {
		t.Fatalf("Lerp(1) = %+v, want %+v", got, b)
	}
	if got := Lerp(a, b, 0.5); got != (Point{X: 5, Y: -2}) {
		t.Fatalf("Lerp(0.5) = %+v", got)
	}
	// Out-of-range parameters clamp instead of extrapolating.
	if got := Lerp(a, b, -1); got != a {
		t.Fatalf("Lerp(-1) = %+v, want clamped %+v", got, a)
	}
	if got := Lerp(a, b, 2); got != b {
		t.Fatalf("Lerp(2) = %+v, want clamped %+v", got, b)
	}
}
