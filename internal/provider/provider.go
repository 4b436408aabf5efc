// Package provider builds gateways scoped to an account's root directory
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/damacus/bucketfs/internal/filesystem"
	"github.com/damacus/bucketfs/internal/keypath"
	"github.com/damacus/bucketfs/internal/services"
)

// ErrMissingConfig is joined with one error per missing setting
var ErrMissingConfig = errors.New("missing required configuration")

// ErrInvalidRoot is returned when an account root escapes the configured root
var ErrInvalidRoot = errors.New("invalid account root")

// Options holds the connection settings shared by every gateway
type Options struct {
	Backend         string `yaml:"backend"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	SessionToken    string `yaml:"session_token"`
	BucketName      string `yaml:"bucket"`
	RootPath        string `yaml:"root_path"`
	Secure          *bool  `yaml:"secure"`
}

// Validate reports every missing setting at once. The memory backend only
// needs a bucket; S3 falls back to the AWS endpoint when none is set. An
// empty RootPath exposes the whole bucket.
func (o Options) Validate() error {
	var errs []error
	missing := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingConfig, name))
		}
	}

	backend := o.credentials().BackendName()
	switch backend {
	case services.BackendMinio:
		missing("endpoint", o.Endpoint)
		missing("access key id", o.AccessKeyID)
		missing("access key secret", o.AccessKeySecret)
	case services.BackendS3:
		missing("access key id", o.AccessKeyID)
		missing("access key secret", o.AccessKeySecret)
	case services.BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", o.Backend))
	}
	missing("bucket name", o.BucketName)

	return errors.Join(errs...)
}

func (o Options) credentials() services.Credentials {
	return services.Credentials{
		Backend:      o.Backend,
		Endpoint:     o.Endpoint,
		Region:       o.Region,
		AccessKey:    o.AccessKeyID,
		SecretKey:    o.AccessKeySecret,
		SessionToken: o.SessionToken,
		Secure:       o.Secure,
	}
}

// Account identifies the caller a gateway is created for
type Account struct {
	Name string
}

// AccountDirectoryQuery maps an account to its root below Options.RootPath
type AccountDirectoryQuery interface {
	RootPath(account Account) string
}

// StaticRoot gives every account the same root
type StaticRoot string

func (r StaticRoot) RootPath(Account) string { return string(r) }

// PerAccountRoot gives each account its own directory below Base
type PerAccountRoot struct {
	Base string
}

func (r PerAccountRoot) RootPath(account Account) string {
	return keypath.Join(r.Base, account.Name)
}

// Provider creates gateways that share one store client
type Provider struct {
	opts     Options
	store    services.ObjectStore
	accounts AccountDirectoryQuery
	gwOpts   []filesystem.Option
}

// New validates opts and builds the shared store. It fails instead of
// deferring configuration errors to the first request.
func New(ctx context.Context, opts Options, factory services.StoreFactory, accounts AccountDirectoryQuery, gwOpts ...filesystem.Option) (*Provider, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = StaticRoot("")
	}
	store, err := factory.NewStore(ctx, opts.credentials())
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", opts.credentials().BackendName(), err)
	}
	return &Provider{
		opts:     opts,
		store:    store,
		accounts: accounts,
		gwOpts:   gwOpts,
	}, nil
}

// RootKey combines the configured root path with the account's root
func (p *Provider) RootKey(account Account) (string, error) {
	accountRoot := p.accounts.RootPath(account)
	for _, segment := range keypath.Split(accountRoot) {
		if segment == "." || segment == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidRoot, accountRoot)
		}
	}
	return keypath.Clean(keypath.Join(p.opts.RootPath, accountRoot)), nil
}

// Create returns a gateway scoped to the account's root directory
func (p *Provider) Create(ctx context.Context, account Account) (*filesystem.Gateway, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rootKey, err := p.RootKey(account)
	if err != nil {
		return nil, err
	}
	return filesystem.NewGateway(p.store, p.opts.BucketName, rootKey, p.gwOpts...), nil
}
