package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evyataryagoni/ipgeolocation/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// CacheEntryModel is the GORM model for the geolocation_cache table
type CacheEntryModel struct {
	IP        string     `gorm:"column:ip;primaryKey;size:45"`
	Payload   string     `gorm:"column:payload;type:text"`
	ExpiresAt *time.Time `gorm:"column:expires_at"` // NULL means no expiry
}

// TableName specifies the table name for GORM
func (CacheEntryModel) TableName() string {
	return "geolocation_cache"
}

// MySQLCache implements Cache using MySQL with GORM
// It keeps lookups across restarts, which matters with a paid provider quota
type MySQLCache struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMySQLCache connects to MySQL and creates the cache table if needed
//
// Parameters:
//   - dsn: Data Source Name (connection string)
//     Format: user:password@tcp(host:port)/dbname?parseTime=true
func NewMySQLCache(dsn string) (*MySQLCache, error) {
	return openMySQLCache(mysql.Open(dsn))
}

// openMySQLCache closes the connection pool on every failure after gorm.Open
func openMySQLCache(dialector gorm.Dialector) (*MySQLCache, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true, // pinged below, after the pool is tuned
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL with GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	if err := db.AutoMigrate(&CacheEntryModel{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate cache table: %w", err)
	}

	return newMySQLCacheWithDB(db), nil
}

func newMySQLCacheWithDB(db *gorm.DB) *MySQLCache {
	return &MySQLCache{db: db, now: time.Now}
}

// Get reads a result; rows past expires_at count as a miss
func (c *MySQLCache) Get(ctx context.Context, ip string) (*models.GeolocationResult, error) {
	var record CacheEntryModel

	// SELECT * FROM geolocation_cache WHERE ip = ? ORDER BY ip LIMIT 1
	err := c.db.WithContext(ctx).Where("ip = ?", ip).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	if record.ExpiresAt != nil && !c.now().Before(*record.ExpiresAt) {
		return nil, ErrCacheMiss
	}

	var result models.GeolocationResult
	if err := json.Unmarshal([]byte(record.Payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode cached result: %w", err)
	}

	return &result, nil
}

// Set upserts a result (INSERT ... ON DUPLICATE KEY UPDATE)
func (c *MySQLCache) Set(ctx context.Context, ip string, result models.GeolocationResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	record := CacheEntryModel{IP: ip, Payload: string(data)}
	if ttl > 0 {
		expiresAt := c.now().Add(ttl).UTC()
		record.ExpiresAt = &expiresAt
	}

	err = c.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to store in MySQL: %w", err)
	}

	return nil
}

// Name implements Cache
func (c *MySQLCache) Name() string {
	return "mysql"
}

// Close closes the database connection
func (c *MySQLCache) Close() error {
	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
