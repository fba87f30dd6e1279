package storage

import (
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteMemory opens an in-memory database with the same schema as
// production postgres. MaxOpenConns is pinned to 1 so concurrent writers
// serialize on a single connection the way postgres row locks would.
func NewSQLiteMemory() (*Postgres, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	p := &Postgres{DB: db}
	if err := p.AutoMigrate(); err != nil {
		return nil, err
	}

	return p, nil
}
