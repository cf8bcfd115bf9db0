package collector

import (
	"context"

	"github.com/fakeyudi/devpulse/internal/session"
)

// Collector gathers one piece of session provenance.
type Collector interface {
	// Collect runs the collection logic and returns its contribution to the
	// session. Failures to determine a value are reported as warnings and
	// the value is left as session.Unknown.
	Collect(ctx context.Context, sess *session.Session) (CollectorResult, error)
}

// CollectorResult holds the output of a single collector.
type CollectorResult struct {
	User      string   // populated by UserCollector
	VCSBranch string   // populated by GitCollector
	Warnings  []string // non-fatal issues encountered
}

// Apply runs every collector against sess and fills its provenance fields.
// Fields no collector could determine are set to session.Unknown.
func Apply(ctx context.Context, sess *session.Session, collectors ...Collector) ([]string, error) {
	var warnings []string
	for _, c := range collectors {
		result, err := c.Collect(ctx, sess)
		if err != nil {
			return warnings, err
		}
		if result.User != "" {
			sess.User = result.User
		}
		if result.VCSBranch != "" {
			sess.VCSBranch = result.VCSBranch
		}
		warnings = append(warnings, result.Warnings...)
	}
	if sess.User == "" {
		sess.User = session.Unknown
	}
	if sess.VCSBranch == "" {
		sess.VCSBranch = session.Unknown
	}
	return warnings, nil
}
