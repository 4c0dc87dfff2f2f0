package initial

import (
	"fmt"
	"log"
	"os"
	"time"

	"ShopSage/internal/config"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewGormDB 打开 MySQL 运营库（storeConfig.driver = mysql 时使用）；只读，不做 AutoMigrate
func NewGormDB(conf *config.Config) (*gorm.DB, error) {
	mc := conf.MysqlConfig
	port := mc.Port
	if port == 0 {
		port = 3306
	}
	dbName := mc.DatabaseName
	if dbName == "" {
		dbName = conf.MongoConfig.DatabaseName
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local", mc.User, mc.Password, mc.Host, port, dbName)
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open mysql %s:%d/%s: %w", mc.Host, port, dbName, err)
	}
	return db, nil
}
