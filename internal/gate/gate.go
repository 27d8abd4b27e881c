// Package gate decides whether a navigation renders, waits or redirects,
// given the caller's resolved authentication and authorization state.
package gate

import (
	"net/url"
	"path"
	"strings"
)

const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Access is the protection level of a view.
type Access int

const (
	Public Access = iota
	Protected
	Admin
)

func (a Access) String() string {
	switch a {
	case Protected:
		return "protected"
	case Admin:
		return "admin"
	default:
		return "public"
	}
}

// AuthState is the authentication dimension.
type AuthState int

const (
	AuthPending AuthState = iota
	Anonymous
	Authenticated
)

func (s AuthState) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "pending"
	}
}

// AuthorizationState is the admin entitlement dimension.
type AuthorizationState int

const (
	AuthorizationPending AuthorizationState = iota
	Denied
	Granted
)

func (s AuthorizationState) String() string {
	switch s {
	case Denied:
		return "denied"
	case Granted:
		return "granted"
	default:
		return "pending"
	}
}

// Outcome is what the caller does with a navigation.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeRender
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRender:
		return "render"
	case OutcomeRedirect:
		return "redirect"
	default:
		return "pending"
	}
}

// MarshalText lets outcomes appear by name in JSON.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Request is one navigation attempt. Authorization is read only for admin
// views.
type Request struct {
	Path          string
	Auth          AuthState
	Authorization AuthorizationState
}

// Decision is the gate's verdict. Location is set for redirects. From is the
// requested path a login redirect should return to.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	Location string  `json:"location,omitempty"`
	From     string  `json:"from,omitempty"`
}

// Classify maps a path to its protection level.
func Classify(view string) Access {
	p := cleanPath(view)
	switch {
	case p == "/dashboard/admin" || strings.HasPrefix(p, "/dashboard/admin/"):
		return Admin
	case p == "/checkout" || p == "/dashboard" || strings.HasPrefix(p, "/dashboard/"):
		return Protected
	default:
		return Public
	}
}

// Evaluate applies the decision tables. It never redirects while a state it
// depends on is still pending.
func Evaluate(req Request) Decision {
	access := Classify(req.Path)
	if access == Public {
		return Decision{Outcome: OutcomeRender}
	}

	switch req.Auth {
	case Anonymous:
		return Decision{Outcome: OutcomeRedirect, Location: LoginPath, From: req.Path}
	case Authenticated:
	default:
		return Decision{Outcome: OutcomePending}
	}

	if access == Protected {
		return Decision{Outcome: OutcomeRender}
	}

	switch req.Authorization {
	case Granted:
		return Decision{Outcome: OutcomeRender}
	case Denied:
		return Decision{Outcome: OutcomeRedirect, Location: HomePath}
	default:
		return Decision{Outcome: OutcomePending}
	}
}

// IsLoginRedirect reports whether d sends the caller to the login view.
func (d Decision) IsLoginRedirect() bool {
	return d.Outcome == OutcomeRedirect && d.Location == LoginPath
}

// SafeTarget returns path when it is a local absolute path, else HomePath.
func SafeTarget(path string) string {
	if path == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return HomePath
	}
	if strings.ContainsAny(path, "\r\n") {
		return HomePath
	}
	return path
}

// cleanPath reduces a view path to the form the route table matches on.
// Routes match case-insensitively, so /CHECKOUT and //dashboard/admin reach
// the same views as their canonical forms.
func cleanPath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	raw = strings.ReplaceAll(raw, "\\", "/")
	return path.Clean("/" + strings.ToLower(raw))
}
