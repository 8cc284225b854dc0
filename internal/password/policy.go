package password

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Mode is the run-wide password handling policy, chosen once at start.
type Mode string

const (
	// ModePerArchive prompts for each encrypted archive.
	ModePerArchive Mode = "per-archive"

	// ModeShared prompts once and reuses the secret for every encrypted
	// archive in the run.
	ModeShared Mode = "shared"

	// ModeSkipAll skips every encrypted archive without prompting.
	ModeSkipAll Mode = "skip"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePerArchive, ModeShared, ModeSkipAll:
		return Mode(s), nil
	case "":
		return ModeSkipAll, nil
	default:
		return "", fmt.Errorf("unknown password mode %q", s)
	}
}

// Prompter supplies passwords from the outside world. ok is false when the
// user declined (cancel or empty input).
type Prompter interface {
	ReadSecret(ctx context.Context, archive string) (secret string, ok bool, err error)
}

// Decision is the policy's answer for one confirmed-encrypted archive.
type Decision struct {
	Supplied bool
	Secret   string
	Reason   string // set when not supplied
}

func supplied(secret string) Decision {
	return Decision{Supplied: true, Secret: secret}
}

func skip(reason string) Decision {
	return Decision{Reason: reason}
}

// Policy resolves passwords for encrypted archives. The shared-mode secret
// is cached on the Policy value, so state is scoped to one run and never
// leaks across runs.
type Policy struct {
	logger   *zap.Logger
	mode     Mode
	prompter Prompter

	shared     *string
	sharedSkip bool
}

// NewPolicy builds a policy. A non-empty preset pre-caches the shared
// secret, so shared mode never prompts at all.
func NewPolicy(logger *zap.Logger, mode Mode, preset string, prompter Prompter) *Policy {
	p := &Policy{
		logger:   logger,
		mode:     mode,
		prompter: prompter,
	}
	if mode == ModeShared && preset != "" {
		p.shared = &preset
	}
	return p
}

func (p *Policy) Mode() Mode {
	return p.mode
}

// Resolve decides whether and which password to use for an archive that an
// engine has just reported as encrypted. In shared mode the prompter is
// consulted at most once per run, even across many encrypted archives; a
// declined shared prompt skips every later encrypted archive too.
func (p *Policy) Resolve(ctx context.Context, archive string) (Decision, error) {
	switch p.mode {
	case ModeSkipAll:
		return skip("encrypted archives skipped by policy"), nil

	case ModeShared:
		if p.sharedSkip {
			return skip("user declined shared password"), nil
		}
		if p.shared != nil {
			return supplied(*p.shared), nil
		}
		secret, ok, err := p.prompt(ctx, archive)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			p.sharedSkip = true
			return skip("user declined shared password"), nil
		}
		p.shared = &secret
		return supplied(secret), nil

	case ModePerArchive:
		secret, ok, err := p.prompt(ctx, archive)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return skip("user declined password"), nil
		}
		return supplied(secret), nil

	default:
		return Decision{}, fmt.Errorf("unknown password mode %q", p.mode)
	}
}

func (p *Policy) prompt(ctx context.Context, archive string) (string, bool, error) {
	if p.prompter == nil {
		return "", false, nil
	}
	p.logger.Debug("requesting password", zap.String("archive", archive), zap.String("mode", string(p.mode)))
	secret, ok, err := p.prompter.ReadSecret(ctx, archive)
	if err != nil {
		return "", false, fmt.Errorf("password prompt: %w", err)
	}
	if secret == "" {
		ok = false
	}
	return secret, ok, nil
}
