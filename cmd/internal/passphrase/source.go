package passphrase

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves the operator keystore passphrase. Resolution order
// is the environment variable, then the configured fallback, then an
// interactive prompt when a terminal is attached. The value is cached after
// the first retrieval so repeated calls reuse the same secret.
//
// Default keystores are created without a passphrase, so an empty result is
// valid; only an explicitly-set-but-blank environment variable is rejected.
type Source struct {
	envVar   string
	fallback string

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a passphrase source that consults envVar before the
// fallback value (typically the config file entry).
func NewSource(envVar, fallback string) *Source {
	return &Source{envVar: strings.TrimSpace(envVar), fallback: fallback}
}

// Get returns the cached passphrase or resolves it on first call.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		if s.fallback != "" {
			s.value = s.fallback
			return
		}

		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return
		}

		fmt.Fprint(os.Stderr, "Enter operator keystore passphrase (empty for none): ")
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			s.err = fmt.Errorf("failed to read passphrase: %w", err)
			return
		}
		s.value = string(bytes)
	})

	return s.value, s.err
}
