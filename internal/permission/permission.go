package permission

import (
	"context"

	"github.com/phuslu/log"
	"nuha.dev/loctrack/internal/prefs"
)

// Checker reports whether location access is currently granted.
type Checker interface {
	Granted(ctx context.Context) (bool, error)
}

type Static bool

func (s Static) Granted(context.Context) (bool, error) {
	return bool(s), nil
}

// Store keeps the grant in the prefs namespace so it survives restarts.
type Store struct {
	flag *prefs.Flag
	log  log.Logger
}

func NewStore(store prefs.Store) *Store {
	s := &Store{flag: prefs.PermissionFlag(store)}
	s.log = log.DefaultLogger
	s.log.Context = log.NewContext(nil).Str("module", "permission").Value()
	return s
}

func (s *Store) Granted(ctx context.Context) (bool, error) {
	return s.flag.Read(ctx)
}

func (s *Store) Grant(ctx context.Context) error {
	err := s.flag.Write(ctx, true)
	if err == nil {
		s.log.Info().Str("event", "permission_granted").Msg("")
	}
	return err
}

func (s *Store) Revoke(ctx context.Context) error {
	err := s.flag.Write(ctx, false)
	if err == nil {
		s.log.Info().Str("event", "permission_revoked").Msg("")
	}
	return err
}
