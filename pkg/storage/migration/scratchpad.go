package migration

import (
	"fmt"

	"github.com/matter-labs/matterdb/pkg/log"
	"github.com/matter-labs/matterdb/pkg/storage"
)

// Scratchpad is a per-session namespace of a fork for migration state such
// as persistent iterator positions. It can be passed anywhere a
// storage.Access is accepted.
type Scratchpad struct {
	*storage.Prefixed
	readonly *storage.Prefixed // same namespace, never registers indexes
	session  string
}

// NewScratchpad opens the namespace of session in fork.
func NewScratchpad(session string, fork *storage.Fork) (*Scratchpad, error) {
	prefixed, err := storage.NewPrefixed(fork, namespace(session))
	if err != nil {
		return nil, fmt.Errorf("scratchpad %q: %w", session, err)
	}
	readonly, err := storage.NewPrefixed(fork.Readonly(), namespace(session))
	if err != nil {
		return nil, fmt.Errorf("scratchpad %q: %w", session, err)
	}
	return &Scratchpad{Prefixed: prefixed, session: session, readonly: readonly}, nil
}

func (s *Scratchpad) Session() string { return s.session }

func namespace(session string) string {
	return string(storage.ScratchpadMarker) + session
}

// RollbackMigration removes every index in the scratchpad of session, which
// includes all persistent iterator positions. The removal takes effect when
// fork is merged.
func RollbackMigration(fork *storage.Fork, session string) error {
	ns := namespace(session)
	if err := storage.ValidateName(ns); err != nil {
		return fmt.Errorf("rollback migration %q: %w", session, err)
	}
	removed := storage.DropIndexes(fork, ns+".")
	log.Migration.Info().
		Str("session", session).
		Int("indexes", len(removed)).
		Msg("rollback")
	return nil
}
