package remotecare

import (
	"context"
	"fmt"

	"github.com/hengadev/remotecare/internal/hash"
)

// searchKey returns the secret called name, reading it from the secret
// store on first use.
func (v *Vault) searchKey(ctx context.Context, name string) (string, error) {
	v.searchMu.RLock()
	secret, ok := v.searchKeys[name]
	v.searchMu.RUnlock()
	if ok {
		return secret, nil
	}

	res, err, _ := v.loads.Do("search:"+name, func() (any, error) {
		var value []byte
		err := v.withRetry(ctx, func(ctx context.Context) error {
			var err error
			value, err = v.secrets.GetSecret(ctx, name)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(value) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", ErrSearchKeyNotFound, name)
		}
		v.searchMu.Lock()
		v.searchKeys[name] = string(value)
		v.searchMu.Unlock()
		v.logger.DebugContext(ctx, "search key loaded", "name", name, "path", v.secrets.GetStoragePath(name))
		return string(value), nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// HMAC digests value with the search or purpose key called name. The value
// is used as given; lookup columns lower-case it first.
func (v *Vault) HMAC(ctx context.Context, name, value string) (string, error) {
	secret, err := v.searchKey(ctx, name)
	if err != nil {
		return "", err
	}
	return hash.CreateHMAC(secret, value), nil
}

// CheckHMAC reports whether digest was produced by HMAC(name, value).
func (v *Vault) CheckHMAC(ctx context.Context, name, value, digest string) (bool, error) {
	secret, err := v.searchKey(ctx, name)
	if err != nil {
		return false, err
	}
	return hash.CheckHMAC(secret, value, digest)
}
