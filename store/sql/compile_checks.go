package sqlstore

import "github.com/msahq/go-verification/core"

var (
	_ core.RecordStore            = (*VerificationStore)(nil)
	_ core.WebhookLogStore        = (*WebhookLogStore)(nil)
	_ core.ClientConfigStore      = (*ClientConfigStore)(nil)
	_ core.ClientConfigStore      = (*CachedClientConfigStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
