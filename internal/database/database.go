// Package database opens the configured backend and hands back the repositories built on it.
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/axellelanca/sitepulse/internal/config"
	customerrors "github.com/axellelanca/sitepulse/internal/errors"
	"github.com/axellelanca/sitepulse/internal/models"
	"github.com/axellelanca/sitepulse/internal/repository"
	"github.com/axellelanca/sitepulse/internal/repository/mongostore"
)

const connectTimeout = 10 * time.Second

// Stores groups the repositories of one backend together with its cleanup.
type Stores struct {
	Visitors   repository.VisitorRepository
	Activities repository.ActivityRepository
	Close      func() error
}

// Open connects to the backend named by cfg.Database.Driver and makes sure its schema
// (tables or indexes) exists.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite, config.DriverPostgres:
		db, err := OpenGorm(cfg)
		if err != nil {
			return nil, err
		}
		if err := Migrate(db); err != nil {
			return nil, err
		}
		return &Stores{
			Visitors:   repository.NewVisitorRepository(db),
			Activities: repository.NewActivityRepository(db),
			Close: func() error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		}, nil
	case config.DriverMongo:
		return openMongo(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", customerrors.ErrUnsupportedDriver, cfg.Database.Driver)
	}
}

// OpenGorm opens the SQL backend. SQLite uses the pure-Go driver so the binary builds without cgo.
func OpenGorm(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.Database.Name)
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("%w: %q is not a SQL driver", customerrors.ErrUnsupportedDriver, cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Database.Driver, err)
	}
	return db, nil
}

// Migrate creates or updates the visitors and activities tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Visitor{}, &models.Activity{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func openMongo(ctx context.Context, cfg *config.Config) (*Stores, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Database.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.Database.MongoDatabase)
	visitors := mongostore.NewVisitorStore(db)
	activities := mongostore.NewActivityStore(db)

	if err := visitors.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := activities.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Printf("Connected to mongo database %s", cfg.Database.MongoDatabase)

	return &Stores{
		Visitors:   visitors,
		Activities: activities,
		Close: func() error {
			return client.Disconnect(context.Background())
		},
	}, nil
}
