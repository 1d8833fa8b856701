package pgstore

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/phuslu/log"
)

// PgStore keeps prefs in postgres. A write returns after the commit, which
// postgres makes durable before acknowledging.
type PgStore struct {
	db  *pgxpool.Pool
	log log.Logger
}

func NewStore(ctx context.Context, db *pgxpool.Pool) (*PgStore, error) {
	st := &PgStore{}
	st.db = db
	st.log = log.DefaultLogger
	st.log.Context = log.NewContext(nil).Str("module", "pgstore").Value()
	_, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS prefs (namespace text NOT NULL, key text NOT NULL, value boolean NOT NULL, updated_at timestamptz NOT NULL DEFAULT now(), PRIMARY KEY (namespace, key))`)
	if err != nil {
		st.log.Error().Err(err).Msg("error creating prefs table")
		return nil, err
	}
	return st, nil
}

func Connect(ctx context.Context, db_url string) (*PgStore, error) {
	pool, err := pgxpool.Connect(ctx, db_url)
	if err != nil {
		return nil, err
	}
	st, err := NewStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil
}

func (st *PgStore) GetBool(ctx context.Context, namespace, key string) (bool, bool, error) {
	var v bool
	err := st.db.QueryRow(ctx, `SELECT value FROM prefs WHERE namespace = $1 AND key = $2`, namespace, key).Scan(&v)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, false, nil
		}
		st.log.Error().Err(err).Str("namespace", namespace).Str("key", key).Msg("error reading pref")
		return false, false, err
	}
	return v, true, nil
}

func (st *PgStore) PutBool(ctx context.Context, namespace, key string, value bool) error {
	_, err := st.db.Exec(ctx, `INSERT INTO prefs (namespace,key,value) VALUES ($1,$2,$3)
	ON CONFLICT (namespace,key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, namespace, key, value)
	if err != nil {
		st.log.Error().Err(err).Str("namespace", namespace).Str("key", key).Msg("error writing pref")
	}
	return err
}

func (st *PgStore) Close() error {
	st.db.Close()
	return nil
}
