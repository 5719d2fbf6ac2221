package evidence

import (
	"math"
	"testing"

	"collateral-evidence/internal/domain/loan"
)

func TestHaversine_Reference(t *testing.T) {
	cases := []struct {
		lat1, lng1, lat2, lng2, want float64
	}{
		{0, 0, 0, 0.0018, 200.15},
		{0, 0, 0.0018, 0, 200.15},
		{0, 0, 0, 0, 0},
	}
	for _, c := range cases {
		got := Haversine(c.lat1, c.lng1, c.lat2, c.lng2)
		if math.Abs(got-c.want) > 0.5 {
			t.Errorf("Haversine(%v,%v,%v,%v) = %.2f, want ~%.2f", c.lat1, c.lng1, c.lat2, c.lng2, got, c.want)
		}
	}
	if a, b := Haversine(1, 2, 3, 4), Haversine(3, 4, 1, 2); math.Abs(a-b) > 1e-9 {
		t.Errorf("not symmetric: %v vs %v", a, b)
	}
}

func at(lat, lng float64) loan.FileEntry {
	return loan.FileEntry{Path: "p", Location: &loan.Location{Lat: lat, Lng: lng}}
}

func TestCheckGeofence(t *testing.T) {
	recorded := []loan.FileEntry{at(0, 0), at(0, 0.0005)}

	if err := CheckGeofence(nil, 10, 10, 200); err != nil {
		t.Fatalf("no recorded assets should pass: %v", err)
	}
	if err := CheckGeofence(recorded, 0, 0.0017, 200); err != nil {
		t.Fatalf("~189m from first asset should pass: %v", err)
	}
	err := CheckGeofence(recorded, 0, 0.0019, 200)
	if reasonOf(t, err) != ReasonLocationMismatch {
		t.Fatalf("~211m from first asset should fail: %v", err)
	}
	// close to the newest, far from the oldest
	err = CheckGeofence([]loan.FileEntry{at(0, 0), at(0, 0.0015)}, 0, 0.0030, 200)
	if reasonOf(t, err) != ReasonLocationMismatch {
		t.Fatalf("every pair must be within the fence: %v", err)
	}
	// entries without a location are skipped
	if err := CheckGeofence([]loan.FileEntry{{Path: "x"}}, 50, 50, 200); err != nil {
		t.Fatalf("unlocated entry should be skipped: %v", err)
	}
}
