package collector

import (
	"context"
	"os"
	"os/user"
	"strings"

	"github.com/fakeyudi/devpulse/internal/session"
)

// UserCollector records who ran the session: the profile name, then
// $USER, then the OS account.
type UserCollector struct {
	ProfileName string
	Getenv      func(string) string          // if nil, os.Getenv
	Lookup      func() (*user.User, error) // if nil, user.Current
}

// Collect implements Collector.
func (u *UserCollector) Collect(ctx context.Context, sess *session.Session) (CollectorResult, error) {
	if name := strings.TrimSpace(u.ProfileName); name != "" {
		return CollectorResult{User: name}, nil
	}

	getenv := u.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if name := strings.TrimSpace(getenv("USER")); name != "" {
		return CollectorResult{User: name}, nil
	}

	lookup := u.Lookup
	if lookup == nil {
		lookup = user.Current
	}
	acct, err := lookup()
	if err != nil || acct.Username == "" {
		return CollectorResult{User: session.Unknown, Warnings: []string{"user identity unavailable"}}, nil
	}
	return CollectorResult{User: acct.Username}, nil
}
