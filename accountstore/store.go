package accountstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type accountRecord struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Identity   string    `gorm:"uniqueIndex;size:320;not null"`
	SecretHash string    `gorm:"not null"`
	Active     bool      `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (accountRecord) TableName() string { return "accounts" }

func (r *accountRecord) toAccount() *authgate.Account {
	return &authgate.Account{
		ID:         r.ID,
		Identity:   r.Identity,
		SecretHash: r.SecretHash,
		Active:     r.Active,
		CreatedAt:  r.CreatedAt,
	}
}

var (
	_ authgate.AccountStore  = (*GormStore)(nil)
	_ authgate.SecretUpdater = (*GormStore)(nil)
)

// GormStore implements authgate.AccountStore.
type GormStore struct {
	db *gorm.DB
}

// New wraps an open gorm handle. Call Migrate once before use.
func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Open connects with the named driver ("sqlite" or "postgres") and migrates
// the accounts table.
func Open(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql", "pg":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported account store driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	s := New(db)
	if err := s.Migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the accounts table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&accountRecord{})
}

func (s *GormStore) FindAccountByIdentity(ctx context.Context, identity string) (*authgate.Account, error) {
	var rec accountRecord
	if err := s.db.WithContext(ctx).Where("identity = ?", identity).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authgate.ErrAccountNotFound
		}
		return nil, err
	}
	return rec.toAccount(), nil
}

func (s *GormStore) FindAccountByID(ctx context.Context, id string) (*authgate.Account, error) {
	var rec accountRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authgate.ErrAccountNotFound
		}
		return nil, err
	}
	return rec.toAccount(), nil
}

// CreateAccount inserts account unless its identity is taken. A
// unique-index violation from a concurrent insert is reported the same way.
func (s *GormStore) CreateAccount(ctx context.Context, account authgate.Account) (*authgate.Account, error) {
	rec := accountRecord{
		ID:         account.ID,
		Identity:   account.Identity,
		SecretHash: account.SecretHash,
		Active:     account.Active,
		CreatedAt:  account.CreatedAt,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&accountRecord{}).Where("identity = ?", rec.Identity).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return authgate.ErrAccountExists
		}
		return tx.Create(&rec).Error
	})
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return nil, authgate.ErrAccountExists
	case err != nil:
		return nil, err
	}
	return rec.toAccount(), nil
}

// SetActive enables or disables an account. Cached snapshots keep the old
// state until they expire.
func (s *GormStore) SetActive(ctx context.Context, id string, active bool) error {
	tx := s.db.WithContext(ctx).Model(&accountRecord{}).Where("id = ?", id).Update("active", active)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return authgate.ErrAccountNotFound
	}
	return nil
}

// UpdateSecretHash replaces the stored password hash for id.
func (s *GormStore) UpdateSecretHash(ctx context.Context, id, secretHash string) error {
	tx := s.db.WithContext(ctx).Model(&accountRecord{}).Where("id = ?", id).Update("secret_hash", secretHash)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return authgate.ErrAccountNotFound
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
