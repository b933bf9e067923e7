package test

import (
	"github.com/polkiloo/fooddelivery/internal/pkg/auth"
)

// StrategyStub issues and parses tokens via function overrides.
type StrategyStub struct {
	IssueFn func(auth.Principal) (string, error)
	ParseFn func(string) (auth.Principal, error)
	NameVal string
}

// IssueToken returns deterministic tokens for tests.
func (s StrategyStub) IssueToken(p auth.Principal) (string, error) {
	if s.IssueFn != nil {
		return s.IssueFn(p)
	}
	return "token:" + string(p.Role) + ":" + p.ID, nil
}

// ParseToken parses previously issued token strings.
func (s StrategyStub) ParseToken(token string) (auth.Principal, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	return auth.Principal{ID: "u1", Role: auth.RoleCustomer}, nil
}

// Name returns the strategy identifier used in tests.
func (s StrategyStub) Name() string {
	if s.NameVal != "" {
		return s.NameVal
	}
	return "stub"
}

// TokenParserStub implements middleware token parsing contract.
type TokenParserStub struct {
	Principal auth.Principal
	Err       error
	ParseFn   func(string) (auth.Principal, error)
}

// ParseToken either delegates to override or returns predefined result.
func (s TokenParserStub) ParseToken(token string) (auth.Principal, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	if s.Err != nil {
		return auth.Principal{}, s.Err
	}
	return s.Principal, nil
}

var _ auth.Strategy = StrategyStub{}
