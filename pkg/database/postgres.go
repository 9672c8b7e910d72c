package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"EquityReach/pkg/config"
	"EquityReach/pkg/model"
)

// ErrStockNotFound 股票不存在
var ErrStockNotFound = errors.New("股票不存在")

// Postgres 数据库连接
type Postgres struct {
	db *gorm.DB
}

// NewPostgres 创建数据库连接并迁移表结构
func NewPostgres(cfg *config.Config) (*Postgres, error) {
	dbCfg := cfg.Database.Postgres

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbCfg.Host, dbCfg.Port, dbCfg.User, dbCfg.Password, dbCfg.DBName, dbCfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层连接失败: %w", err)
	}

	// 连接池参数
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("测试数据库连接失败: %w", err)
	}

	// 自动迁移
	if err := db.AutoMigrate(
		&model.Stock{},
		&model.StockPrice{},
		&model.StockMarketData{},
		&model.FinancialStatement{},
		&model.FinancialRatio{},
	); err != nil {
		return nil, fmt.Errorf("迁移表结构失败: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Close 关闭数据库连接
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction 在单个事务内执行回调
func (p *Postgres) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}

// Stock 股票信息访问器
func (p *Postgres) Stock() *StockDB {
	return &StockDB{db: p.db}
}

// Price 行情数据访问器
func (p *Postgres) Price() *PriceDB {
	return &PriceDB{db: p.db}
}

// MarketData 市场数据访问器
func (p *Postgres) MarketData() *MarketDataDB {
	return &MarketDataDB{db: p.db}
}

// Financial 财务数据访问器
func (p *Postgres) Financial() *FinancialDB {
	return &FinancialDB{db: p.db}
}

// Analytics 分析查询访问器
func (p *Postgres) Analytics() *AnalyticsDB {
	return &AnalyticsDB{db: p.db}
}
