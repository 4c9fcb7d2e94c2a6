package database

import (
	"database/sql"
)

type PgConfabRepository struct {
	conn *sql.DB
}

func NewPgConfabRepository(dsn string) (*PgConfabRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgConfabRepository{conn: db}, nil
}

func (db *PgConfabRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgConfabRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
