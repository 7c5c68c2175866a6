// Package sqlstore implements the repositories on PostgreSQL through GORM.
// Multi-row changes run inside database.WithTransaction or, where concurrent
// writers can conflict, database.WithRetry at serializable isolation.
package sqlstore

import (
	"database/sql"
	"strings"
	"time"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/idgen"
	"gorm.io/gorm"
)

type Store struct {
	db  *gorm.DB
	ids idgen.Generator
	now func() time.Time
}

func New(db *gorm.DB, ids idgen.Generator) *Store {
	return &Store{db: db, ids: ids, now: time.Now}
}

func (s *Store) Products() *ProductRepository   { return &ProductRepository{s: s} }
func (s *Store) Categories() *CategoryRepository { return &CategoryRepository{s: s} }
func (s *Store) Clients() *ClientRepository     { return &ClientRepository{s: s} }
func (s *Store) Cart() *CartRepository          { return &CartRepository{s: s} }
func (s *Store) Orders() *OrderRepository       { return &OrderRepository{s: s} }

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func serializable() database.TxOptions {
	return database.TxOptions{IsolationLevel: sql.LevelSerializable, MaxRetries: 3}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}
