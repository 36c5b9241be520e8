package mfa

import (
	"bytes"
	"strconv"
	"testing"
)

func TestGenerate_SixDigitRange(t *testing.T) {
	g := NewCodeGenerator(6)
	for i := 0; i < 500; i++ {
		code, err := g.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q length = %d, want 6", code, len(code))
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("code %q is not numeric: %v", code, err)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("code %d outside [100000, 999999]", n)
		}
	}
}

func TestGenerate_DefaultDigits(t *testing.T) {
	code, err := NewCodeGenerator(0).Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(code) != DefaultDigits {
		t.Errorf("code length = %d, want %d", len(code), DefaultDigits)
	}
}

func TestGenerate_OtherLengths(t *testing.T) {
	for _, digits := range []int{4, 8, 10} {
		code, err := NewCodeGenerator(digits).Generate()
		if err != nil {
			t.Fatalf("Generate(%d): %v", digits, err)
		}
		if len(code) != digits {
			t.Errorf("Generate(%d) = %q, wrong length", digits, code)
		}
		if code[0] == '0' {
			t.Errorf("Generate(%d) = %q has a leading zero", digits, code)
		}
	}
}

func TestGenerate_Randomness(t *testing.T) {
	// Generate multiple codes and verify they're different (very unlikely to collide)
	g := NewCodeGenerator(6)
	seen := make(map[string]bool)
	dups := 0
	for i := 0; i < 100; i++ {
		code, err := g.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if seen[code] {
			dups++
		}
		seen[code] = true
	}
	if dups > 2 {
		t.Errorf("%d duplicate codes in 100 draws", dups)
	}
}

func TestGenerate_ReaderError(t *testing.T) {
	g := &CodeGenerator{digits: 6, rand: bytes.NewReader(nil)}
	if _, err := g.Generate(); err == nil {
		t.Fatal("expected error when the random source is exhausted")
	}
}

func TestGenerate_BoundsFromReader(t *testing.T) {
	// All-zero randomness yields the lowest code.
	g := &CodeGenerator{digits: 6, rand: bytes.NewReader(make([]byte, 64))}
	code, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if code != "100000" {
		t.Errorf("code = %q, want 100000", code)
	}
}

func TestCodeEqual(t *testing.T) {
	testCases := []struct {
		name     string
		provided string
		stored   string
		want     bool
	}{
		{"match", "123456", "123456", true},
		{"mismatch", "654321", "123456", false},
		{"prefix", "12345", "123456", false},
		{"longer", "1234567", "123456", false},
		{"empty", "", "123456", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeEqual(tc.provided, tc.stored); got != tc.want {
				t.Errorf("CodeEqual(%q, %q) = %v, want %v", tc.provided, tc.stored, got, tc.want)
			}
		})
	}
}
