package sqlstore

import "github.com/cyobiorah/go-social-connect/core"

var (
	_ core.AccountRepository      = (*AccountStore)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
