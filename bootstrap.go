package main

import (
	"context"
	"database/sql"
	"fmt"

	"crm-social/domain/repository"
	"crm-social/infrastructure/configuration"
	"crm-social/infrastructure/events"
	"crm-social/infrastructure/logger"
	"crm-social/infrastructure/persistence"
	"crm-social/infrastructure/pubsub"
	"crm-social/infrastructure/servicebus"
)

// stores holds the persistence selected by configuration. shares and
// snapshots stay nil when no SQL database for them is reachable.
type stores struct {
	credentials repository.ICredentialRepository
	shares      repository.IShare
	snapshots   repository.IMetricsSnapshot
	closers     []func()
}

func (s *stores) close() {
	for _, c := range s.closers {
		c()
	}
}

// InitiateDatabase opens the credential store named by Database.Store
// (psql, mssql, mysql or mongo) and ensures its schema. Publish records and
// metrics snapshots live in SQL Server for mssql, otherwise in PostgreSQL.
func InitiateDatabase(ctx context.Context) (*stores, error) {
	cfg := configuration.C.Database
	st := &stores{}
	switch cfg.Store {
	case "mssql":
		db, err := persistence.NewMSSQLDB(cfg.Mssql)
		if err != nil {
			return nil, fmt.Errorf("connect mssql: %w", err)
		}
		st.closers = append(st.closers, func() { _ = db.Close() })
		for name, ensure := range map[string]func(*sql.DB) error{
			"credential":       persistence.EnsureCredentialSchemaMSSQL,
			"share":            persistence.EnsureShareSchemaMSSQL,
			"metrics snapshot": persistence.EnsureMetricsSnapshotSchemaMSSQL,
		} {
			if err := ensure(db); err != nil {
				logger.GetLogger().WithField("error", err).WithField("schema", name).Error("failed ensuring mssql schema")
			}
		}
		st.credentials = persistence.NewCredentialRepositoryMSSQL(db)
		st.shares = persistence.NewShareRepositoryMSSQL(db)
		st.snapshots = persistence.NewMetricsSnapshotRepositoryMSSQL(db)
		return st, nil
	case "mysql":
		gdb, err := persistence.NewMySQLGorm(cfg.MySql)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		repo := persistence.NewCredentialRepositoryGorm(gdb)
		if err := repo.Migrate(); err != nil {
			return nil, fmt.Errorf("migrate credentials: %w", err)
		}
		if sqlDB, err := gdb.DB(); err == nil {
			st.closers = append(st.closers, func() { _ = sqlDB.Close() })
		}
		st.credentials = repo
	case "mongo":
		mdb, err := persistence.NewMongoDb(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		st.closers = append(st.closers, func() { _ = mdb.Client().Disconnect(context.Background()) })
		repo := persistence.NewCredentialRepositoryMongo(mdb)
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring credential indexes")
		}
		st.credentials = repo
	default:
		db, err := persistence.NewPostgreSQLDB(cfg.Psql)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := persistence.EnsureCredentialSchema(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring credential schema")
		}
		st.credentials = persistence.NewCredentialRepository(db)
		st.attachPostgres(db)
		return st, nil
	}

	if cfg.Psql.Host == "" {
		return st, nil
	}
	db, err := persistence.NewPostgreSQLDB(cfg.Psql)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("PostgreSQL not available - publish records disabled")
		return st, nil
	}
	st.attachPostgres(db)
	return st, nil
}

func (s *stores) attachPostgres(db *sql.DB) {
	s.closers = append(s.closers, func() { _ = db.Close() })
	if err := persistence.EnsureShareSchema(db); err != nil {
		logger.GetLogger().WithField("error", err).Error("failed ensuring share schema")
	}
	if err := persistence.EnsureMetricsSnapshotSchema(db); err != nil {
		logger.GetLogger().WithField("error", err).Error("failed ensuring metrics snapshot schema")
	}
	s.shares = persistence.NewShareRepository(db)
	s.snapshots = persistence.NewMetricsSnapshotRepository(db)
}

// InitiateEvents selects the bus named by Events.Provider, falling back to
// logging events when the bus is not reachable.
func InitiateEvents(ctx context.Context) (repository.IEventPublisher, func()) {
	cfg := configuration.C
	switch cfg.Events.Provider {
	case "pubsub":
		client, err := pubsub.NewPubSub(ctx, cfg.Pubsub.ProjectID)
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while instantiate PubSub")
			break
		}
		pub := pubsub.NewEventPublisher(client, cfg.Events.Topic)
		return pub, func() {
			pub.Close()
			_ = client.Close()
		}
	case "servicebus":
		client, err := servicebus.NewServiceBus(ctx, cfg.ServiceBus.Namespace)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - events will only be logged")
			break
		}
		return servicebus.NewEventPublisher(client, cfg.Events.Queue), func() { _ = client.Close(context.Background()) }
	}
	return events.LogPublisher{}, func() {}
}
