package engine

import (
	"context"
	"testing"
)

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_AllowRedirect(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name       string
		allowlist  []string
		redirectTo string
		want       bool
	}{
		{"empty redirect always allowed", []string{"app.example.com"}, "", true},
		{"empty allowlist allows any", nil, "https://evil.test/cb", true},
		{"empty allowlist allows unparseable", nil, "http://[bad", true},
		{"exact host", []string{"app.example.com"}, "https://app.example.com/callback", true},
		{"host is case-insensitive", []string{"App.Example.com"}, "https://APP.example.com/callback", true},
		{"port ignored", []string{"localhost"}, "http://localhost:3000/cb", true},
		{"other host denied", []string{"app.example.com"}, "https://evil.test/cb", false},
		{"suffix attack denied", []string{"example.com"}, "https://notexample.com/cb", false},
		{"wildcard subdomain", []string{"*.example.com"}, "https://a.b.example.com/cb", true},
		{"wildcard does not match apex", []string{"*.example.com"}, "https://example.com/cb", false},
		{"non-http scheme denied", []string{"app.example.com"}, "javascript://app.example.com/x", false},
		{"relative url denied", []string{"app.example.com"}, "/dashboard", false},
		{"unparseable denied", []string{"app.example.com"}, "http://[bad", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewOPAEvaluator(ctx, tt.allowlist)
			if err != nil {
				t.Fatalf("NewOPAEvaluator: %v", err)
			}
			got, err := e.AllowRedirect(ctx, tt.redirectTo)
			if err != nil {
				t.Fatalf("AllowRedirect: %v", err)
			}
			if got != tt.want {
				t.Errorf("AllowRedirect(%q) with %v = %v, want %v", tt.redirectTo, tt.allowlist, got, tt.want)
			}
		})
	}
}

func TestOPAEvaluator_ConcurrentEval(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx, []string{"app.example.com"})
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	done := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		go func() {
			ok, err := e.AllowRedirect(ctx, "https://app.example.com/cb")
			done <- err == nil && ok
		}()
	}
	for i := 0; i < 20; i++ {
		if !<-done {
			t.Fatal("concurrent evaluation failed")
		}
	}
}
