package engine

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const redirectQuery = "data.identity.redirect.allow"

// Default Rego policy: allow http(s) redirects whose host equals an allowlisted host or matches a "*.domain" entry.
// An empty allowlist allows every redirect.
const defaultRegoPolicy = `package identity.redirect

default allow := false

allow if {
	count(input.allowed_hosts) == 0
}

allow if {
	input.redirect.scheme in {"http", "https"}
	some entry in input.allowed_hosts
	host_matches(input.redirect.host, entry)
}

host_matches(host, entry) if {
	host == entry
}

host_matches(host, entry) if {
	startswith(entry, "*.")
	endswith(host, substring(entry, 1, -1))
}
`

// OPAEvaluator evaluates the OAuth redirect allowlist with OPA Rego. The query is prepared once and is safe for
// concurrent use.
type OPAEvaluator struct {
	allowedHosts []string
	query        rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the redirect policy for the given allowlist (hosts are compared lower-cased).
func NewOPAEvaluator(ctx context.Context, allowedHosts []string) (*OPAEvaluator, error) {
	hosts := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	compiler, err := compile()
	if err != nil {
		return nil, err
	}
	pq, err := rego.New(
		rego.Query(redirectQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare redirect policy: %w", err)
	}
	return &OPAEvaluator{allowedHosts: hosts, query: pq}, nil
}

func compile() (*ast.Compiler, error) {
	compiler, err := ast.CompileModules(map[string]string{"redirect.rego": defaultRegoPolicy})
	if err != nil {
		return nil, fmt.Errorf("compile redirect policy: %w", err)
	}
	return compiler, nil
}

// AllowRedirect evaluates the policy for redirectTo. Unparseable URLs are denied when an allowlist is configured.
func (e *OPAEvaluator) AllowRedirect(ctx context.Context, redirectTo string) (bool, error) {
	redirectTo = strings.TrimSpace(redirectTo)
	if redirectTo == "" {
		return true, nil
	}
	redirect := map[string]interface{}{"scheme": "", "host": ""}
	if u, err := url.Parse(redirectTo); err == nil {
		redirect["scheme"] = strings.ToLower(u.Scheme)
		redirect["host"] = strings.ToLower(u.Hostname())
	} else if len(e.allowedHosts) > 0 {
		log.Printf("policy: unparseable redirect %q: %v", redirectTo, err)
		return false, nil
	}
	hosts := make([]interface{}, len(e.allowedHosts))
	for i, h := range e.allowedHosts {
		hosts[i] = h
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"redirect":      redirect,
		"allowed_hosts": hosts,
	}))
	if err != nil {
		return false, fmt.Errorf("eval redirect policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("redirect policy returned no result")
	}
	allow, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("redirect policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allow, nil
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the redirect policy.
// Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := compile()
	if err != nil {
		return err
	}
	rs, err := rego.New(
		rego.Query(redirectQuery),
		rego.Compiler(compiler),
		rego.Input(map[string]interface{}{
			"redirect":      map[string]interface{}{"scheme": "https", "host": "example.com"},
			"allowed_hosts": []interface{}{"example.com"},
		}),
	).Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval redirect policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	if allow, _ := rs[0].Expressions[0].Value.(bool); !allow {
		return fmt.Errorf("redirect policy rejected health check")
	}
	return nil
}
