package testsupport

import (
	"embed"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

//go:embed testdata/*.json
var fixtures embed.FS

// Fixture returns an embedded fixture from testdata.
func Fixture(t testing.TB, name string) []byte {
	t.Helper()

	data, err := fixtures.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", name, err)
	}
	return data
}

// FixtureJSON unmarshals an embedded fixture into dest.
func FixtureJSON(t testing.TB, name string, dest any) {
	t.Helper()

	if err := json.Unmarshal(Fixture(t, name), dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture %s: %v", name, err)
	}
}

// RestaurantsJSON is the remote restaurant listing served by FakeRemote.
func RestaurantsJSON(t testing.TB) []byte {
	return Fixture(t, "restaurants.json")
}

// ReviewsJSON is the remote review listing served by FakeRemote.
func ReviewsJSON(t testing.TB) []byte {
	return Fixture(t, "reviews.json")
}

// WriteFile writes content to name inside a per-test directory and returns its path.
func WriteFile(t testing.TB, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
