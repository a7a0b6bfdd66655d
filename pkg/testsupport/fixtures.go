// Package testsupport holds fixture and golden file helpers for document tests.
package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-modelxml/xmltree"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadDocument loads and parses an XML fixture.
func LoadDocument(t *testing.T, path string) *xmltree.Document {
	t.Helper()

	doc, err := xmltree.ParseString(string(LoadFixture(t, path)))
	if err != nil {
		t.Fatalf("failed to parse XML fixture %s: %v", path, err)
	}
	return doc
}

// ParseDocument parses inline XML.
func ParseDocument(t *testing.T, s string) *xmltree.Document {
	t.Helper()

	doc, err := xmltree.ParseString(s)
	if err != nil {
		t.Fatalf("failed to parse document: %v", err)
	}
	return doc
}

// WriteGolden writes test output to a golden file.
// This should typically only be called when updating golden files.
func WriteGolden(t *testing.T, path string, data []byte) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write golden file to %s: %v", path, err)
	}
}

// CompareWithGolden compares actual data with expected data from a golden file.
// If the golden file doesn't exist, it creates one with the actual data. A trailing
// newline in the golden file is ignored.
func CompareWithGolden(t *testing.T, path string, actual []byte) {
	t.Helper()

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Logf("Golden file %s does not exist, creating it", path)
			WriteGolden(t, path, actual)
			return
		}
		t.Fatalf("failed to read golden file %s: %v", path, err)
	}

	want := strings.TrimSuffix(string(expected), "\n")
	if string(actual) != want {
		t.Errorf("output mismatch for %s:\nExpected:\n%s\nActual:\n%s", path, want, actual)
	}
}

// CompareDocument compares the encoded form of doc with a golden file.
func CompareDocument(t *testing.T, path string, doc *xmltree.Document) {
	t.Helper()
	if doc == nil {
		t.Fatalf("nil document compared with %s", path)
	}
	CompareWithGolden(t, path, []byte(doc.String()))
}

// TempFile creates a temporary file with the given content, removed when the test ends.
func TempFile(t *testing.T, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath constructs a path to a golden file relative to the testdata directory.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}
