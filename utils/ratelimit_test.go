package utils

import (
	"testing"
	"time"
)

func TestHostPacerEnforcesInterval(t *testing.T) {
	p := NewHostPacer(50 * time.Millisecond)

	start := time.Now()
	p.Wait("https://example.com/a")
	p.Wait("https://example.com/b")
	p.Wait("https://example.com/c")
	elapsed := time.Since(start)

	if elapsed < 100*time.Millisecond {
		t.Errorf("three same-host requests finished in %v, want >= 100ms", elapsed)
	}
}

func TestHostPacerIndependentHosts(t *testing.T) {
	p := NewHostPacer(200 * time.Millisecond)

	start := time.Now()
	p.Wait("https://a.example.com/")
	p.Wait("https://b.example.com/")
	elapsed := time.Since(start)

	if elapsed > 100*time.Millisecond {
		t.Errorf("distinct hosts should not pace each other, took %v", elapsed)
	}
}

func TestURLSetAdd(t *testing.T) {
	s := NewURLSet()

	if !s.Add("https://example.com/1") {
		t.Error("first Add should return true")
	}
	if s.Add("https://example.com/1") {
		t.Error("duplicate Add should return false")
	}
	if !s.Contains("https://example.com/1") {
		t.Error("Contains should report added URL")
	}
	if s.Size() != 1 {
		t.Errorf("Size = %d, want 1", s.Size())
	}
}
