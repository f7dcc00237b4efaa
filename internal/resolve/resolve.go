// Package resolve turns raw sender/recipient handles into SMTP addresses.
package resolve

import (
	"context"
	"regexp"
	"strings"

	"github.com/contactkit/mailharvest/internal/contact"
	"github.com/contactkit/mailharvest/internal/mailstore"
)

// emailPattern extracts an RFC 5322-like token from free text.
var emailPattern = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)

// Config controls resolution behavior.
type Config struct {
	// FallbackDomain is used by the last-resort method that synthesizes
	// an address from a display name. Empty disables that method.
	FallbackDomain string
	// Excludes drops resolved addresses matching any pattern, as if
	// resolution had failed.
	Excludes []*regexp.Regexp
}

// CompileExcludes compiles exclude patterns from config strings.
// Invalid patterns are reported; none are silently dropped.
func CompileExcludes(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// Resolution is the outcome of a successful resolve.
type Resolution struct {
	Email string
	// Role is a side channel: directory lookups that yield the SMTP
	// address sometimes expose a job title too.
	Role string
	// Guessed marks the synthesized last-resort address.
	Guessed bool
}

// method is one step of the fallback chain. ok is false when the method
// cannot produce a usable address; the chain then moves on.
type method func(ctx context.Context, h mailstore.Handle) (Resolution, bool)

// Resolver applies an ordered fallback chain of resolution methods,
// stopping at the first one that yields an SMTP address.
type Resolver struct {
	cfg     Config
	dir     mailstore.Directory
	methods []method
}

// New builds a Resolver. dir may be nil when the backend has no
// directory capability; the directory method then never matches.
func New(cfg Config, dir mailstore.Directory) *Resolver {
	r := &Resolver{cfg: cfg, dir: dir}
	r.methods = []method{
		r.directAddress,
		r.smtpProperty,
		r.displayNameToken,
		r.directoryLookup,
		r.synthesize,
	}
	return r
}

// Resolve runs the chain. ok is false when every method fails; the
// candidate is then dropped by the caller. No method failure escapes.
func (r *Resolver) Resolve(ctx context.Context, h mailstore.Handle) (Resolution, bool) {
	if h == nil {
		return Resolution{}, false
	}
	for _, m := range r.methods {
		res, ok := m(ctx, h)
		if !ok {
			continue
		}
		res.Email = strings.ToLower(res.Email)
		if r.excluded(res.Email) {
			return Resolution{}, false
		}
		return res, true
	}
	return Resolution{}, false
}

func (r *Resolver) excluded(email string) bool {
	for _, re := range r.cfg.Excludes {
		if re.MatchString(email) {
			return true
		}
	}
	return false
}

// directAddress uses the handle's own address when it is already SMTP.
func (r *Resolver) directAddress(_ context.Context, h mailstore.Handle) (Resolution, bool) {
	addr := h.Address()
	if contact.ValidEmail(addr) {
		return Resolution{Email: addr}, true
	}
	return Resolution{}, false
}

// smtpProperty looks up the well-known SMTP address property.
func (r *Resolver) smtpProperty(_ context.Context, h mailstore.Handle) (Resolution, bool) {
	addr, ok := h.Property(mailstore.PropSMTPAddress)
	if ok && contact.ValidEmail(addr) {
		return Resolution{Email: addr}, true
	}
	return Resolution{}, false
}

// displayNameToken extracts an address embedded in the display name.
func (r *Resolver) displayNameToken(_ context.Context, h mailstore.Handle) (Resolution, bool) {
	name := h.DisplayName()
	if !strings.Contains(name, "@") {
		return Resolution{}, false
	}
	if m := emailPattern.FindString(name); m != "" && contact.ValidEmail(m) {
		return Resolution{Email: m}, true
	}
	return Resolution{}, false
}

// directoryLookup resolves directory-style addresses through the
// backend's address book to obtain the true SMTP address, capturing a
// job title when the entry carries one.
func (r *Resolver) directoryLookup(ctx context.Context, h mailstore.Handle) (Resolution, bool) {
	if r.dir == nil || !contact.IsDirectoryAddress(h.Address()) {
		return Resolution{}, false
	}
	entry, err := r.dir.Resolve(ctx, h.DisplayName())
	if err != nil || entry == nil {
		return Resolution{}, false
	}
	if !contact.ValidEmail(entry.PrimarySMTP) {
		return Resolution{}, false
	}
	return Resolution{Email: entry.PrimarySMTP, Role: entry.JobTitle}, true
}

// synthesize builds first-token@fallback-domain from the display name.
// The result is a placeholder, not a verified address, and is flagged.
func (r *Resolver) synthesize(_ context.Context, h mailstore.Handle) (Resolution, bool) {
	if r.cfg.FallbackDomain == "" {
		return Resolution{}, false
	}
	parts := strings.Fields(strings.ReplaceAll(h.DisplayName(), ",", ""))
	if len(parts) == 0 {
		return Resolution{}, false
	}
	email := strings.ToLower(parts[0]) + "@" + r.cfg.FallbackDomain
	if !contact.ValidEmail(email) {
		return Resolution{}, false
	}
	return Resolution{Email: email, Guessed: true}, true
}
