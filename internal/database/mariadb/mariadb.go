// Package mariadb stores face descriptors in MySQL or MariaDB through gorm.
package mariadb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/database"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// descriptorRow is the gorm model of the face_descriptors table.
// The vector is kept as a JSON array so it stays readable from SQL clients.
type descriptorRow struct {
	UserID    int64           `gorm:"primaryKey;autoIncrement:false"`
	Vector    json.RawMessage `gorm:"type:json;not null"`
	Label     string          `gorm:"size:255;not null;default:''"`
	CreatedAt time.Time       `gorm:"autoCreateTime;index"`
}

func (descriptorRow) TableName() string {
	return "face_descriptors"
}

// Store is a MySQL/MariaDB implementation of database.DescriptorStore.
type Store struct {
	db *gorm.DB
}

// NormalizeDSN parses a go-sql-driver DSN and forces the options the store relies on.
func NormalizeDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", errors.New("MariaDB DSN is required")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Open connects to MySQL/MariaDB and creates the descriptor table if needed.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	dsn, err := NormalizeDSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access MariaDB pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&descriptorRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate MariaDB schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Get retrieves the descriptor of a user, nil if the user is not enrolled.
func (s *Store) Get(ctx context.Context, userID int64) (*database.StoredDescriptor, error) {
	var row descriptorRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get descriptor: %w", err)
	}

	d, err := row.toStored()
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetAll returns every descriptor ordered by user ID.
func (s *Store) GetAll(ctx context.Context) ([]database.StoredDescriptor, error) {
	var rows []descriptorRow
	if err := s.db.WithContext(ctx).Order("user_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query descriptors: %w", err)
	}

	out := make([]database.StoredDescriptor, 0, len(rows))
	for i := range rows {
		d, err := rows[i].toStored()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Count returns the number of enrolled users.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&descriptorRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count descriptors: %w", err)
	}
	return int(n), nil
}

// Put replaces the descriptor of d.UserID inside one transaction.
func (s *Store) Put(ctx context.Context, d database.StoredDescriptor) error {
	vector, err := json.Marshal(d.Vector)
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", d.UserID).Delete(&descriptorRow{}).Error; err != nil {
			return fmt.Errorf("delete existing descriptor: %w", err)
		}
		row := descriptorRow{UserID: d.UserID, Vector: vector, Label: d.Label}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert descriptor for user %d: %w", d.UserID, err)
		}
		return nil
	})
}

// Delete removes the descriptor of a user.
func (s *Store) Delete(ctx context.Context, userID int64) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&descriptorRow{})
	if res.Error != nil {
		return false, fmt.Errorf("delete descriptor: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("access MariaDB pool: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

func (r *descriptorRow) toStored() (database.StoredDescriptor, error) {
	var vector []float32
	if err := json.Unmarshal(r.Vector, &vector); err != nil {
		return database.StoredDescriptor{}, fmt.Errorf("decode descriptor of user %d: %w", r.UserID, err)
	}
	return database.StoredDescriptor{
		UserID:    r.UserID,
		Vector:    vector,
		Label:     r.Label,
		CreatedAt: r.CreatedAt,
	}, nil
}
