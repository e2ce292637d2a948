package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/msahq/go-verification/core"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the full store set from one shared bun handle.
type RepositoryFactory struct {
	db      *bun.DB
	secrets core.SecretProvider

	verificationStore *VerificationStore
	webhookLogStore   *WebhookLogStore
	clientConfigStore *ClientConfigStore
}

type FactoryOption func(*RepositoryFactory)

// WithFactorySecretProvider seals client signature keys at rest in the
// client config store.
func WithFactorySecretProvider(provider core.SecretProvider) FactoryOption {
	return func(f *RepositoryFactory) {
		f.secrets = provider
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(factory)
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.verificationStore != nil && f.webhookLogStore != nil && f.clientConfigStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) RecordStore() core.RecordStore {
	if f == nil {
		return nil
	}
	return f.verificationStore
}

func (f *RepositoryFactory) WebhookLogStore() core.WebhookLogStore {
	if f == nil {
		return nil
	}
	return f.webhookLogStore
}

func (f *RepositoryFactory) ClientConfigStore() core.ClientConfigStore {
	if f == nil {
		return nil
	}
	return f.clientConfigStore
}

// ClientConfigUpserter exposes the writable side of the client config store
// for administrative wiring.
func (f *RepositoryFactory) ClientConfigUpserter() *ClientConfigStore {
	if f == nil {
		return nil
	}
	return f.clientConfigStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	verificationStore, err := NewVerificationStore(f.db)
	if err != nil {
		return err
	}
	f.verificationStore = verificationStore

	webhookLogStore, err := NewWebhookLogStore(f.db)
	if err != nil {
		return err
	}
	f.webhookLogStore = webhookLogStore

	var configOpts []ClientConfigStoreOption
	if f.secrets != nil {
		configOpts = append(configOpts, WithSecretProvider(f.secrets))
	}
	clientConfigStore, err := NewClientConfigStore(f.db, configOpts...)
	if err != nil {
		return err
	}
	f.clientConfigStore = clientConfigStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
