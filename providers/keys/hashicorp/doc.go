// Package hashicorp wraps personal keys with a HashiCorp Vault Transit key.
//
// The master key never leaves Vault. Config.KEKAlias is the transit key
// name, and GetKeyID returns it unchanged once Vault confirms the key
// exists.
//
//	transit, err := vaulttransit.NewTransitService(ctx)
//	if err != nil {
//	    // handle error
//	}
//	vault, err := remotecare.NewVault(ctx, transit, secrets, remotecare.Config{
//	    KEKAlias: "remotecare",
//	})
//
// Connection settings come from the same VAULT_* variables as the KV store.
// The token needs the transit/encrypt/<key> and transit/decrypt/<key>
// capabilities, plus read on transit/keys/<key>.
package hashicorp
