package payroll

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"testing"
)

func TestNormalizeKeepsPrefixedIDs(t *testing.T) {
	ids := NewIdentityNormalizer(rand.NewSource(1))
	tests := map[string]string{
		"GO1001":   "GO1001",
		"go1002":   "GO1002",
		" Go1003 ": "GO1003",
		"gO-abc":   "GO-ABC",
	}
	for input, want := range tests {
		if got := ids.Normalize(input); got != want {
			t.Fatalf("normalize %q: expected %q, got %q", input, want, got)
		}
	}
}

func TestNormalizeSynthesizesInRange(t *testing.T) {
	ids := NewIdentityNormalizer(rand.NewSource(7))
	for _, input := range []string{"", "EMP1492", "1234", "G"} {
		got := ids.Normalize(input)
		if !strings.HasPrefix(got, IdentityPrefix) {
			t.Fatalf("expected prefix on %q, got %q", input, got)
		}
		n, err := strconv.Atoi(strings.TrimPrefix(got, IdentityPrefix))
		if err != nil {
			t.Fatalf("expected numeric suffix, got %q", got)
		}
		if n < 1000 || n > 9999 {
			t.Fatalf("suffix out of range: %d", n)
		}
	}
}

func TestNormalizeSeededSourceIsReproducible(t *testing.T) {
	a := NewIdentityNormalizer(rand.NewSource(99))
	b := NewIdentityNormalizer(rand.NewSource(99))
	for i := 0; i < 5; i++ {
		if x, y := a.Normalize("EMP1"), b.Normalize("EMP1"); x != y {
			t.Fatalf("expected same sequence, got %s and %s", x, y)
		}
	}
}

func TestNormalizeConcurrentUse(t *testing.T) {
	ids := NewIdentityNormalizer(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := ids.Normalize(""); len(got) != 6 {
					t.Errorf("unexpected id %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
