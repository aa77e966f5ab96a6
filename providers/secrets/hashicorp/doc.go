// Package hashicorp stores remotecare search keys in a HashiCorp Vault KV v2
// engine.
//
// Each key lives under remotecare.VaultSecretPathTemplate with its value
// base64 encoded in the "value" field:
//
//	secret/data/remotecare/email_search
//
// The client is configured from the VAULT_ADDR, VAULT_NAMESPACE and
// VAULT_TOKEN (or VAULT_ROLE_ID and VAULT_SECRET_ID) environment variables:
//
//	kv, err := vaultkv.NewKVStore(ctx)
//	if err != nil {
//	    // handle error
//	}
//	vault, err := remotecare.NewVault(ctx, transit, kv, cfg)
package hashicorp
