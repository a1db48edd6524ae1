package geo

import (
	"math"
	"testing"
)

func TestHaversineKM(t *testing.T) {
	cases := []struct {
		name string
		a, b Point
		want float64
		tol  float64
	}{
		{name: "same point", a: Point{9.01, 38.76}, b: Point{9.01, 38.76}, want: 0, tol: 1e-9},
		{name: "one degree latitude", a: Point{0, 0}, b: Point{1, 0}, want: 111.195, tol: 0.01},
		{name: "paris to london", a: Point{48.8566, 2.3522}, b: Point{51.5074, -0.1278}, want: 343.5, tol: 1.0},
	}
	for _, tc := range cases {
		got := HaversineKM(tc.a, tc.b)
		if math.Abs(got-tc.want) > tc.tol {
			t.Fatalf("%s: got %.3f want %.3f", tc.name, got, tc.want)
		}
	}
}

func TestHaversineSymmetric(t *testing.T) {
	a := Point{9.0108, 38.7613}
	b := Point{9.0300, 38.7400}
	if math.Abs(HaversineKM(a, b)-HaversineKM(b, a)) > 1e-12 {
		t.Fatalf("distance should be symmetric")
	}
}

func TestPointFromPtr(t *testing.T) {
	lat, lng := 9.0, 38.7
	if _, ok := PointFromPtr(nil, &lng); ok {
		t.Fatalf("missing latitude should be unknown")
	}
	if p, ok := PointFromPtr(&lat, &lng); !ok || p.Lat != lat || p.Lng != lng {
		t.Fatalf("unexpected point: %+v ok=%v", p, ok)
	}
	bad := 200.0
	if _, ok := PointFromPtr(&lat, &bad); ok {
		t.Fatalf("out of range longitude should be rejected")
	}
}
