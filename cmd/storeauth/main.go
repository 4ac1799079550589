// storeauth is the command-line front end for the signing library: it
// generates accounts, assembles signed operation descriptors, and manages
// delegation certificates. Every command prints a single JSON document on
// stdout so output can be piped straight into a transport.
package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pkmsg/go-client/internal/config"
	"pkmsg/go-client/internal/identity"
	"pkmsg/go-client/internal/metrics"
	"pkmsg/go-client/internal/platform/privacylog"
	"pkmsg/go-client/internal/platform/ratelimiter"
	"pkmsg/go-client/internal/request"
	"pkmsg/go-client/internal/storage"
	"pkmsg/go-client/internal/subaccount"
	"pkmsg/go-client/pkg/models"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	logger := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stderr, nil)))
	slog.SetDefault(logger)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Warn("metrics registration failed", "error", err.Error())
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("storeauth version=%s commit=%s build_date=%s\n", version, commit, buildDate)
	case "generate":
		err = runGenerate(os.Args[2:])
	case "sign":
		err = runSign(os.Args[2:])
	case "delegate":
		err = runDelegate(os.Args[2:])
	case "revoke":
		err = runRevoke(os.Args[2:])
	case "unrevoke":
		err = runUnrevoke(os.Args[2:])
	case "certs":
		err = runCerts(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: storeauth <command> [flags]

commands:
  generate   create a new account from a fresh mnemonic
  sign       assemble a signed operation descriptor
  delegate   issue a delegation certificate for another key
  revoke     sign a revocation for an issued certificate
  unrevoke   sign an unrevocation for previously revoked certificates
  certs      list locally recorded certificates
  version    print build information`)
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to storeauth.yaml (optional)")
	session := fs.Bool("session", false, "derive the store identifier from the X25519 key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg := config.LoadFromPath(*configPath)
	prefix, err := cfg.Prefix()
	if err != nil {
		return err
	}

	mnemonic, keys, err := identity.GenerateMnemonic()
	if err != nil {
		return err
	}
	account := &identity.Account{Keys: keys, Prefix: prefix, SessionIdentified: *session}
	handle, err := account.Handle()
	if err != nil {
		return err
	}
	fingerprint, err := identity.Fingerprint(keys.PublicKey)
	if err != nil {
		return err
	}

	slog.Info("account generated", "store_id", handle.Hex())
	return printJSON(struct {
		Mnemonic string         `json:"mnemonic"`
		Account  models.Account `json:"account"`
	}{
		Mnemonic: mnemonic,
		Account: models.Account{
			Fingerprint:      fingerprint,
			SigningPublicKey: keys.PublicKey,
			StoreID:          handle.Hex(),
		},
	})
}

func runSign(args []string) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	configPath := fs.String("config", "", "path to storeauth.yaml (optional)")
	mnemonic := fs.String("mnemonic", "", "account mnemonic (or set PKMSG_MNEMONIC)")
	session := fs.Bool("session", false, "identify by the derived X25519 key")
	method := fs.String("method", "", "store method: store | retrieve | delete | delete_all | delete_before | expire_msgs | expire_all | get_expiries")
	namespace := fs.Int("namespace", 0, "message namespace")
	allNamespaces := fs.Bool("all-namespaces", false, "address every namespace (delete_all / delete_before)")
	timestamp := fs.Int64("timestamp", 0, "signature timestamp, unix ms (default now)")
	expiry := fs.Int64("expiry", 0, "expiry timestamp, unix ms")
	before := fs.Int64("before", 0, "cutoff timestamp, unix ms (delete_before)")
	ttl := fs.Int64("ttl", 0, "message ttl, ms (store)")
	data := fs.String("data", "", "message payload (store)")
	hashes := fs.String("hashes", "", "comma-separated message hashes")
	lastHash := fs.String("last-hash", "", "resume marker (retrieve)")
	shorten := fs.Bool("shorten", false, "only shorten expiries")
	extend := fs.Bool("extend", false, "only extend expiries")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.LoadFromPath(*configPath)
	assembler, owner, err := buildOwner(cfg, *mnemonic, *session)
	if err != nil {
		return err
	}
	ts := *timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	hashList := splitCSV(*hashes)

	var desc models.OperationDescriptor
	switch *method {
	case "store":
		desc, err = assembler.Store(owner, request.StoreParams{
			Namespace: *namespace, Data: []byte(*data), TTL: *ttl, SigTimestamp: ts,
		})
	case "retrieve":
		desc, err = assembler.Retrieve(owner, request.RetrieveParams{
			Namespace: *namespace, LastHash: *lastHash, Timestamp: ts,
		})
	case "delete":
		desc, err = assembler.Delete(owner, request.DeleteParams{MessageHashes: hashList})
	case "delete_all":
		desc, err = assembler.DeleteAll(owner, request.DeleteAllParams{
			Namespace: *namespace, AllNamespaces: *allNamespaces, Timestamp: ts,
		})
	case "delete_before":
		desc, err = assembler.DeleteBefore(owner, request.DeleteBeforeParams{
			Namespace: *namespace, AllNamespaces: *allNamespaces, Before: *before,
		})
	case "expire_msgs":
		desc, err = assembler.Expire(owner, request.ExpireParams{
			MessageHashes: hashList, Expiry: *expiry, Shorten: *shorten, Extend: *extend,
		})
	case "expire_all":
		desc, err = assembler.ExpireAll(owner, request.ExpireAllParams{
			Namespace: *namespace, Expiry: *expiry,
		})
	case "get_expiries":
		desc, err = assembler.GetExpiries(owner, request.GetExpiriesParams{
			MessageHashes: hashList, Timestamp: ts,
		})
	default:
		return fmt.Errorf("unknown method %q", *method)
	}
	if err != nil {
		return err
	}
	slog.Info("descriptor assembled", "method", desc.Method)
	return printJSON(desc)
}

func runDelegate(args []string) error {
	fs := flag.NewFlagSet("delegate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to storeauth.yaml (optional)")
	mnemonic := fs.String("mnemonic", "", "owner mnemonic (or set PKMSG_MNEMONIC)")
	targetHex := fs.String("target", "", "delegate Ed25519 public key, 64 hex chars")
	permsCSV := fs.String("perms", "read", "comma-separated: read,write,delete,any-prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.LoadFromPath(*configPath)
	prefix, err := cfg.Prefix()
	if err != nil {
		return err
	}
	keys, err := ownerKeys(*mnemonic)
	if err != nil {
		return err
	}
	target, err := hex.DecodeString(strings.TrimSpace(*targetHex))
	if err != nil || len(target) != ed25519.PublicKeySize {
		return fmt.Errorf("target must be %d hex chars of Ed25519 key", 2*ed25519.PublicKeySize)
	}
	perms, err := parsePermissions(*permsCSV)
	if err != nil {
		return err
	}

	authority := subaccount.NewAuthority(subaccount.Config{NetworkPrefix: prefix, Unblinded: !cfg.Blinding})
	grant, err := authority.CreateDelegation(keys, target, perms)
	if err != nil {
		return err
	}
	metrics.IncDelegation()

	cert := models.IssuedDelegation{
		TokenHex:        grant.TokenHex(),
		OwnerPublicKey:  keys.PublicKey,
		TargetPublicKey: target,
		Permissions:     byte(perms),
		Blinded:         cfg.Blinding,
		OwnerSignature:  grant.OwnerSignature,
		CreatedAt:       time.Now().UTC(),
	}
	store, err := openCertStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		if err := store.Record(cert); err != nil {
			return err
		}
	}
	slog.Info("delegation issued", "delegate_id", strings.TrimSpace(*targetHex))
	return printJSON(struct {
		Subaccount    string `json:"subaccount"`
		SubaccountSig string `json:"subaccount_sig"`
		Blinded       bool   `json:"blinded"`
	}{
		Subaccount:    grant.TokenHex(),
		SubaccountSig: grant.OwnerSignatureBase64(),
		Blinded:       cfg.Blinding,
	})
}

func runRevoke(args []string) error {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	configPath := fs.String("config", "", "path to storeauth.yaml (optional)")
	mnemonic := fs.String("mnemonic", "", "owner mnemonic (or set PKMSG_MNEMONIC)")
	tokenHex := fs.String("token", "", "token to revoke, hex")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg := config.LoadFromPath(*configPath)
	assembler, owner, err := buildOwner(cfg, *mnemonic, false)
	if err != nil {
		return err
	}

	desc, err := assembler.RevokeSubaccount(owner, strings.TrimSpace(*tokenHex))
	if err != nil {
		return err
	}
	store, err := openCertStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		if _, err := store.Revoke(strings.TrimSpace(*tokenHex), time.Now()); err != nil && !errors.Is(err, storage.ErrCertUnknown) {
			return err
		}
	}
	return printJSON(desc)
}

func runUnrevoke(args []string) error {
	fs := flag.NewFlagSet("unrevoke", flag.ExitOnError)
	configPath := fs.String("config", "", "path to storeauth.yaml (optional)")
	mnemonic := fs.String("mnemonic", "", "owner mnemonic (or set PKMSG_MNEMONIC)")
	tokensCSV := fs.String("tokens", "", "comma-separated token hexes (default: every revoked cert on record)")
	timestamp := fs.Int64("timestamp", 0, "signature timestamp, unix ms (default now)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg := config.LoadFromPath(*configPath)
	assembler, owner, err := buildOwner(cfg, *mnemonic, false)
	if err != nil {
		return err
	}
	store, err := openCertStore(cfg)
	if err != nil {
		return err
	}

	tokens := splitCSV(*tokensCSV)
	if len(tokens) == 0 && store != nil {
		tokens = store.Revoked()
	}
	if len(tokens) == 0 {
		return fmt.Errorf("no tokens to unrevoke")
	}
	ts := *timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	desc, err := assembler.UnrevokeSubaccount(owner, ts, tokens)
	if err != nil {
		return err
	}
	if store != nil {
		if _, err := store.Unrevoke(tokens); err != nil {
			return err
		}
	}
	return printJSON(desc)
}

func runCerts(args []string) error {
	fs := flag.NewFlagSet("certs", flag.ExitOnError)
	configPath := fs.String("config", "", "path to storeauth.yaml (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg := config.LoadFromPath(*configPath)
	store, err := openCertStore(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("no certStorePath configured")
	}
	return printJSON(store.List())
}

func buildOwner(cfg config.Config, mnemonic string, session bool) (*request.Assembler, request.Owner, error) {
	prefix, err := cfg.Prefix()
	if err != nil {
		return nil, request.Owner{}, err
	}
	keys, err := ownerKeys(mnemonic)
	if err != nil {
		return nil, request.Owner{}, err
	}
	authority := subaccount.NewAuthority(subaccount.Config{NetworkPrefix: prefix, Unblinded: !cfg.Blinding})
	throttle := ratelimiter.New(cfg.SignRPS, cfg.SignBurst, cfg.SignIdleTTL)
	owner := request.Owner{Account: &identity.Account{
		Keys:              keys,
		Prefix:            prefix,
		SessionIdentified: session,
	}}
	return request.NewAssembler(authority, throttle), owner, nil
}

func ownerKeys(mnemonic string) (*identity.KeyPair, error) {
	if mnemonic == "" {
		mnemonic = os.Getenv("PKMSG_MNEMONIC")
	}
	if strings.TrimSpace(mnemonic) == "" {
		return nil, fmt.Errorf("a mnemonic is required (flag -mnemonic or PKMSG_MNEMONIC)")
	}
	seed, err := identity.SigningSeedFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	return identity.FromSeed(seed)
}

func openCertStore(cfg config.Config) (*storage.CertStore, error) {
	if strings.TrimSpace(cfg.CertStorePath) == "" {
		return nil, nil
	}
	if cfg.CertStoreSecret != "" {
		return storage.NewEncryptedPersistentCertStore(cfg.CertStorePath, cfg.CertStoreSecret)
	}
	return storage.NewPersistentCertStore(cfg.CertStorePath)
}

func parsePermissions(csv string) (subaccount.Permission, error) {
	var perms subaccount.Permission
	for _, name := range splitCSV(csv) {
		switch name {
		case "read":
			perms |= subaccount.PermissionRead
		case "write":
			perms |= subaccount.PermissionWrite
		case "delete":
			perms |= subaccount.PermissionDelete
		case "any-prefix":
			perms |= subaccount.PermissionAnyPrefix
		default:
			return 0, fmt.Errorf("unknown permission %q", name)
		}
	}
	if perms == 0 {
		return 0, fmt.Errorf("at least one permission is required")
	}
	return perms, nil
}

func splitCSV(s string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
