package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/remotecare/audit"
	"github.com/hengadev/remotecare/audit/kafka"
	"github.com/hengadev/remotecare/internal/crypto"
	"github.com/hengadev/remotecare/internal/hash"
	"github.com/hengadev/remotecare/internal/health"
	"github.com/hengadev/remotecare/internal/random"
	"github.com/hengadev/remotecare/internal/server"
)

var (
	errUsage   = errors.New("usage")
	errNoMatch = errors.New("value does not match")
)

type cli struct {
	stdout io.Writer
	stderr io.Writer
}

// runner executes a command once its flags are parsed. a is nil for
// commands that do not need a vault.
type runner func(ctx context.Context, c *cli, a *app, args []string) error

type command struct {
	name  string
	help  string
	vault bool
	flags func(fs *flag.FlagSet) runner
}

var commands = []command{
	{name: "keygen", help: "Create the personal key of an owner", vault: true, flags: keygenFlags},
	{name: "encrypt", help: "Encrypt a value or file with a personal key", vault: true, flags: encryptFlags},
	{name: "decrypt", help: "Decrypt a value or file with a personal key", vault: true, flags: decryptFlags},
	{name: "hmac", help: "Compute the lookup HMAC of a value", vault: true, flags: hmacFlags},
	{name: "rotate", help: "Rewrap every personal key with a new master key", vault: true, flags: rotateFlags},
	{name: "audit", help: "Print audit entries with decrypted changes", vault: true, flags: auditFlags},
	{name: "serve", help: "Serve /healthz, /readyz and /metrics", vault: true, flags: serveFlags},
	{name: "hash", help: "Hash a value with a salt", flags: hashFlags},
	{name: "check-hash", help: "Check a value against a hash", flags: checkHashFlags},
	{name: "random", help: "Generate a random id, password, key or bytes", flags: randomFlags},
	{name: "maxlen", help: "Column size for an encrypted value of n bytes", flags: maxlenFlags},
	{name: "version", help: "Show version information", flags: versionFlags},
}

func (c *cli) usage() {
	fmt.Fprintf(c.stderr, "Usage: rcvault <command> [options]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(c.stderr, "  %-11s %s\n", cmd.name, cmd.help)
	}
	fmt.Fprintf(c.stderr, "\nRun 'rcvault <command> -h' for help on a specific command.\n")
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.usage()
		return errUsage
	}
	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(c.stderr, "Unknown command: %s\n", args[0])
		c.usage()
		return errUsage
	}

	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	var configPath, envFile *string
	if cmd.vault {
		configPath = fs.String("config", "rcvault.yaml", "Path to configuration file")
		envFile = fs.String("env", ".env", "Path to .env file")
	}
	r := cmd.flags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return errUsage
	}
	if !cmd.vault {
		return r(ctx, c, nil, fs.Args())
	}

	cfg, err := LoadConfig(*configPath, *envFile)
	if err != nil {
		return err
	}
	a, err := setup(ctx, cfg, newLogger(cfg.Log, c.stderr))
	if err != nil {
		return err
	}
	defer a.Close()
	return r(ctx, c, a, fs.Args())
}

func exactArgs(args []string, n int, what string) error {
	if len(args) != n {
		return fmt.Errorf("%w: expected %s", errUsage, what)
	}
	return nil
}

func keygenFlags(fs *flag.FlagSet) runner {
	owner := fs.String("owner", "", "Owner of the key, e.g. account:<uuid>")
	return func(ctx context.Context, c *cli, a *app, args []string) error {
		if *owner == "" {
			return fmt.Errorf("%w: -owner is required", errUsage)
		}
		key, err := a.vault.CreateEncryptionKey(ctx, *owner)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, key.ID)
		return nil
	}
}

type cryptFlags struct {
	key *string
	in  *string
	out *string
}

func registerCryptFlags(fs *flag.FlagSet) cryptFlags {
	return cryptFlags{
		key: fs.String("key", "", "Personal key id"),
		in:  fs.String("in", "", "Read the data from this file instead of the argument"),
		out: fs.String("out", "", "Write file output here instead of stdout"),
	}
}

// stream runs fn from -in to -out, or to stdout when -out is empty.
func (f cryptFlags) stream(c *cli, fn func(src io.Reader, dst io.Writer) error) error {
	src, err := os.Open(*f.in)
	if err != nil {
		return err
	}
	defer src.Close()
	if *f.out == "" {
		return fn(src, c.stdout)
	}
	dst, err := os.OpenFile(*f.out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := fn(src, dst); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (f cryptFlags) keyID() (uuid.UUID, error) {
	id, err := uuid.Parse(*f.key)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: -key must be a key id: %w", errUsage, err)
	}
	return id, nil
}

func encryptFlags(fs *flag.FlagSet) runner {
	f := registerCryptFlags(fs)
	return func(ctx context.Context, c *cli, a *app, args []string) error {
		id, err := f.keyID()
		if err != nil {
			return err
		}
		if *f.in != "" {
			return f.stream(c, func(src io.Reader, dst io.Writer) error {
				return a.vault.EncryptStream(ctx, id, src, dst)
			})
		}
		if err := exactArgs(args, 1, "one value"); err != nil {
			return err
		}
		out, err := a.vault.Encrypt(ctx, id, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, out)
		return nil
	}
}

func decryptFlags(fs *flag.FlagSet) runner {
	f := registerCryptFlags(fs)
	return func(ctx context.Context, c *cli, a *app, args []string) error {
		id, err := f.keyID()
		if err != nil {
			return err
		}
		if *f.in != "" {
			return f.stream(c, func(src io.Reader, dst io.Writer) error {
				return a.vault.DecryptStream(ctx, id, src, dst)
			})
		}
		if err := exactArgs(args, 1, "one value"); err != nil {
			return err
		}
		out, err := a.vault.Decrypt(ctx, id, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, out)
		return nil
	}
}

func hmacFlags(fs *flag.FlagSet) runner {
	name := fs.String("name", "", "Search key name, e.g. email_search")
	return func(ctx context.Context, c *cli, a *app, args []string) error {
		if *name == "" {
			return fmt.Errorf("%w: -name is required", errUsage)
		}
		if err := exactArgs(args, 1, "one value"); err != nil {
			return err
		}
		digest, err := a.vault.HMAC(ctx, *name, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, digest)
		return nil
	}
}

func rotateFlags(fs *flag.FlagSet) runner {
	alias := fs.String("alias", "", "Alias of the new master key")
	return func(ctx context.Context, c *cli, a *app, args []string) error {
		if *alias == "" {
			return fmt.Errorf("%w: -alias is required", errUsage)
		}
		a.addRotationKey(*alias)
		if err := a.vault.RotateMasterKey(ctx, *alias); err != nil {
			return err
		}
		_, id := a.vault.KEK()
		fmt.Fprintf(c.stdout, "personal keys rewrapped with %s (%s)\n", *alias, id)
		return nil
	}
}

type auditLine struct {
	ID       uuid.UUID      `json:"id"`
	AddedOn  time.Time      `json:"added_on"`
	AddedBy  string         `json:"added_by"`
	Module   string         `json:"module"`
	Name     string         `json:"name"`
	ObjectID string         `json:"object_id"`
	Added    bool           `json:"added"`
	Changes  map[string]any `json:"changes"`
}

func auditFlags(fs *flag.FlagSet) runner {
	var f audit.Filter
	fs.StringVar(&f.Module, "module", "", "Only entries of this module")
	fs.StringVar(&f.Name, "name", "", "Only entries of this record type")
	fs.StringVar(&f.ObjectID, "object", "", "Only entries of this record id")
	fs.StringVar(&f.AddedBy, "user", "", "Only entries added by this user")
	fs.IntVar(&f.Limit, "limit", 0, "Maximum number of entries")
	since := fs.Duration("since", 0, "Only entries younger than this, e.g. 24h")
	return func(ctx context.Context, c *cli, a *app, args []string) error {
		if *since > 0 {
			f.Since = time.Now().Add(-*since)
		}
		entries, err := a.vault.History(ctx, f)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(c.stdout)
		for _, e := range entries {
			changes, err := a.vault.AuditChanges(ctx, e)
			if err != nil {
				return fmt.Errorf("audit entry %s: %w", e.ID, err)
			}
			module, name := e.Object()
			if err := enc.Encode(auditLine{
				ID:       e.ID,
				AddedOn:  e.AddedOn,
				AddedBy:  e.AddedBy,
				Module:   module,
				Name:     name,
				ObjectID: e.ObjectID(),
				Added:    e.Added(),
				Changes:  changes,
			}); err != nil {
				return err
			}
		}
		return nil
	}
}

func serveFlags(fs *flag.FlagSet) runner {
	addr := fs.String("addr", "", "Listen address, overrides server.addr")
	return func(ctx context.Context, c *cli, a *app, args []string) error {
		if *addr == "" {
			*addr = a.cfg.Server.Addr
		}
		checker := health.NewChecker("rcvault", version)
		checks := []health.Check{
			health.Ping("vault", true, a.vault.Ping),
			health.Ping("store", true, a.store.Ping),
		}
		if a.cache != nil {
			checks = append(checks, health.Ping("key_cache", false, a.cache.Ping))
		}
		if a.kafka != nil {
			if err := kafka.EnsureTopic(ctx, a.kafka, a.cfg.Audit.Topic, 1, 1); err != nil {
				a.logger.Warn("audit topic not created", "error", err)
			}
			checks = append(checks, health.Ping("audit_stream", false, a.kafka.Ping))
		}
		for _, check := range checks {
			if err := checker.Register(check); err != nil {
				return err
			}
		}

		srv := server.New(*addr, server.NewRouter(checker, a.registry, a.logger))
		return server.Run(ctx, srv, a.logger, a.cfg.Server.ShutdownTimeout)
	}
}

func hashFlags(fs *flag.FlagSet) runner {
	salt := fs.String("salt", "", "Salt, random when empty")
	return func(ctx context.Context, c *cli, _ *app, args []string) error {
		if err := exactArgs(args, 1, "one value"); err != nil {
			return err
		}
		out, err := hash.CreateHash(args[0], *salt)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, out)
		return nil
	}
}

func checkHashFlags(fs *flag.FlagSet) runner {
	return func(ctx context.Context, c *cli, _ *app, args []string) error {
		if err := exactArgs(args, 2, "a value and a hash"); err != nil {
			return err
		}
		ok, err := hash.CheckHash(args[0], args[1])
		if err != nil {
			return err
		}
		if !ok {
			return errNoMatch
		}
		fmt.Fprintln(c.stdout, "ok")
		return nil
	}
}

func randomFlags(fs *flag.FlagSet) runner {
	kind := fs.String("kind", "id", "One of id, password, key, base or bytes")
	length := fs.Int("length", 16, "Length for base and bytes")
	choices := fs.String("choices", random.DefaultChoices, "Alphabet for base")
	return func(ctx context.Context, c *cli, _ *app, args []string) error {
		var (
			out string
			err error
		)
		switch *kind {
		case "id":
			out, err = random.ID()
		case "password":
			out, err = random.Password()
		case "key":
			out, err = random.Key()
		case "base":
			out, err = random.Base(*length, *choices)
		case "bytes":
			var b []byte
			if b, err = random.Bytes(*length); err == nil {
				out = hex.EncodeToString(b)
			}
		default:
			return fmt.Errorf("%w: unknown kind %q", errUsage, *kind)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, out)
		return nil
	}
}

func maxlenFlags(fs *flag.FlagSet) runner {
	name := fs.String("cipher", crypto.AES256CBCName, "Cipher the column is encrypted with")
	return func(ctx context.Context, c *cli, _ *app, args []string) error {
		if err := exactArgs(args, 1, "a plaintext length"); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("%w: length must be a non-negative integer", errUsage)
		}
		r := crypto.DefaultRegistry()
		if err := r.Use(*name); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		fmt.Fprintln(c.stdout, r.MaxLength(n))
		return nil
	}
}

func versionFlags(fs *flag.FlagSet) runner {
	return func(ctx context.Context, c *cli, _ *app, args []string) error {
		fmt.Fprintf(c.stdout, "rcvault %s\n", version)
		return nil
	}
}
