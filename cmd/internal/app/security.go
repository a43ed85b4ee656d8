package app

import (
	"errors"
	"net/url"
	"strings"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/autherr"
	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/session"
	"github.com/seanWLawrence/checklists-sub000/cmd/security/password"
)

// ValidateSecurityConfig enforces the production security policy at startup.
// A plaintext login secret must pass pw's secret policy in production.
func ValidateSecurityConfig(cfg Config, sess session.Config, pw password.Config) error {
	const op = "app.ValidateSecurityConfig"
	var errs []error

	if sess.SigningSecret == sess.LoginSecret {
		errs = append(errs, autherr.Configuration(op, "signing secret must differ from login secret", nil))
	}

	if cfg.Production() {
		u, err := url.Parse(sess.CanonicalURL)
		switch {
		case strings.TrimSpace(sess.CanonicalURL) == "":
			errs = append(errs, autherr.Configuration(op, "CHECKLISTS_CANONICAL_URL is required in production", nil))
		case err != nil || u.Scheme != "https" || u.Host == "":
			errs = append(errs, autherr.Configuration(op, "CHECKLISTS_CANONICAL_URL must be an https origin", err))
		}
		if plaintextLoginSecret(sess) {
			if err := pw.CheckSecret(sess.LoginSecret); err != nil {
				errs = append(errs, autherr.Configuration(op, "CHECKLISTS_AUTH_LOGIN_SECRET fails the secret policy", err))
			}
		}
		if cfg.Backend() == BackendMemory {
			errs = append(errs, autherr.Configuration(op, "the memory store is not allowed in production", nil))
		}
	}

	return errors.Join(errs...)
}

// plaintextLoginSecret reports whether the login secret is stored unhashed.
func plaintextLoginSecret(sess session.Config) bool {
	return !strings.HasPrefix(sess.LoginSecret, password.Prefix)
}
