package main

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// PostgresStore is a Store over PostgreSQL. Tables come from migrations/.
type PostgresStore struct {
	*sqlStore
	dsn string
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresStore{
		sqlStore: &sqlStore{db: d, bind: dollarPlaceholders, isUnique: isPostgresUnique},
		dsn:      dsn,
	}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresStore) Init() error {
	// rely on migrations to create tables; just verify connectivity
	return p.db.Ping()
}

// isPostgresUnique matches unique_violation (SQLSTATE 23505).
func isPostgresUnique(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
