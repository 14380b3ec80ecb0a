// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

// Package web is the HTTP boundary of simpleauth: declarative per-route
// access rules, the authentication middleware, cookie handling, and the
// login/logout/password-reset endpoints.
package web

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Requirement is the resolved authentication requirement of an endpoint.
type Requirement int

const (
	// RequirementDefault means no declaration applies; the endpoint is
	// allowed (fail-open: routes must opt in to protection).
	RequirementDefault Requirement = iota

	// RequireAuth denies unauthenticated requests.
	RequireAuth

	// AllowAnonymous always permits, regardless of group declarations.
	AllowAnonymous
)

// String returns the requirement name for logs and metrics.
func (r Requirement) String() string {
	switch r {
	case RequireAuth:
		return "require"
	case AllowAnonymous:
		return "allow"
	default:
		return "default"
	}
}

type groupRule struct {
	prefix      string
	requirement Requirement
}

// Rules is the per-route access table, populated at route-registration time
// and read-only afterwards. Declarations resolve in strict precedence order:
//
//  1. endpoint-level AllowAnonymous
//  2. endpoint-level RequireAuth
//  3. group-level RequireAuth (longest matching prefix)
//  4. default: allowed
//
// Excluded patterns (glob syntax, e.g. "/passwords/**") bypass enforcement
// entirely; the session is still resumed for them.
type Rules struct {
	endpoints map[string]Requirement
	groups    []groupRule
	excluded  []glob.Glob
}

// NewRules creates an empty rule table.
func NewRules() *Rules {
	return &Rules{endpoints: make(map[string]Requirement)}
}

// Endpoint declares a requirement for one method+path pair. The path is the
// route pattern as registered, parameters included.
func (r *Rules) Endpoint(method, path string, req Requirement) *Rules {
	r.endpoints[endpointKey(method, path)] = req
	return r
}

// Group declares a requirement for every route under a path prefix, applied
// only when the endpoint itself declares nothing.
func (r *Rules) Group(prefix string, req Requirement) *Rules {
	r.groups = append(r.groups, groupRule{prefix: prefix, requirement: req})
	return r
}

// Exclude adds glob patterns whose matching request paths skip the access
// check entirely.
func (r *Rules) Exclude(patterns ...string) error {
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return oops.Code("RULES_INVALID_PATTERN").
				With("pattern", p).
				Wrap(err)
		}
		r.excluded = append(r.excluded, g)
	}
	return nil
}

// Resolve returns the requirement for a route, applying the precedence
// order documented on Rules.
func (r *Rules) Resolve(method, path string) Requirement {
	if req, ok := r.endpoints[endpointKey(method, path)]; ok && req != RequirementDefault {
		return req
	}

	// Longest matching group prefix wins between groups.
	best := RequirementDefault
	bestLen := -1
	for _, g := range r.groups {
		if g.requirement == RequirementDefault {
			continue
		}
		if matchesPrefix(path, g.prefix) && len(g.prefix) > bestLen {
			best = g.requirement
			bestLen = len(g.prefix)
		}
	}
	return best
}

// IsExcluded reports whether a concrete request path matches an excluded
// pattern.
func (r *Rules) IsExcluded(path string) bool {
	for _, g := range r.excluded {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func endpointKey(method, path string) string {
	return method + " " + path
}

// matchesPrefix matches on whole path segments, so the group "/posts" covers
// "/posts" and "/posts/:id" but not "/postscript".
func matchesPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
