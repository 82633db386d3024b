// Package presign issues short-lived, scoped URLs that let clients transfer
// recipe images directly to and from object storage.
package presign

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/tasti/api/internal/storage"
)

// Namespace is the key prefix every presigned key is scoped under.
const Namespace = "recipes"

const (
	// DefaultExpiration applies when a request does not set one.
	DefaultExpiration = time.Hour
	// MaxExpiration is the Signature V4 upper bound.
	MaxExpiration = 7 * 24 * time.Hour
)

var (
	ErrMissingMethod     = errors.New("method is required")
	ErrMethodNotAllowed  = errors.New("method not allowed")
	ErrEmptyKey          = errors.New("key is required")
	ErrInvalidExpiration = errors.New("invalid expiration")
)

// ValidationError reports a request the client must fix. Message is safe to
// return to the client.
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error, format string, args ...any) error {
	return &ValidationError{Err: err, Message: fmt.Sprintf(format, args...)}
}

// Policy is the set of rules one entry point applies to access requests.
type Policy struct {
	Name    string
	Methods []storage.Method
	// RejectBareNamespace refuses requests that resolve to the namespace itself.
	RejectBareNamespace bool
}

// Allows reports whether m is accepted by the policy.
func (p Policy) Allows(m storage.Method) bool {
	return slices.Contains(p.Methods, m)
}

// checkMethod parses raw and rejects it when missing or not allowed.
func (p Policy) checkMethod(raw string) (storage.Method, error) {
	if strings.TrimSpace(raw) == "" {
		return "", invalid(ErrMissingMethod, "method is required")
	}
	method := storage.ParseMethod(raw)
	if !p.Allows(method) {
		return "", invalid(ErrMethodNotAllowed, "method must be one of: %s", p.methodList())
	}
	return method, nil
}

func (p Policy) methodList() string {
	names := make([]string, len(p.Methods))
	for i, m := range p.Methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// The two entry points disagree on DELETE. Both rule sets are kept as-is.
var (
	// RecipePolicy guards the per-recipe image action.
	RecipePolicy = Policy{
		Name:                "recipe",
		Methods:             []storage.Method{storage.MethodGet, storage.MethodPut},
		RejectBareNamespace: true,
	}
	// GenericPolicy guards the bucket-wide presigned-url action.
	GenericPolicy = Policy{
		Name:    "generic",
		Methods: []storage.Method{storage.MethodGet, storage.MethodPut, storage.MethodDelete},
	}
)

// Request is a client's ask for a presigned URL.
type Request struct {
	Method string
	Key    string
	// Filename, on PUT, makes the broker derive a unique key under Key.
	Filename string
	// Expiration of zero means the broker's default.
	Expiration time.Duration
}

// Grant is a presigned URL and the key it was issued for. For PUT with a
// filename, Key differs from the requested key; clients must report Key back
// when attaching the upload to a recipe.
type Grant struct {
	URL       string
	Key       string
	Method    storage.Method
	ExpiresIn time.Duration
}

// NormalizeKey scopes raw under Namespace. Keys already prefixed with
// "recipes/" are returned unchanged; an empty key becomes the bare namespace.
// A literal "recipes" is not a prefix and becomes "recipes/recipes".
func NormalizeKey(raw string) string {
	if raw == "" {
		return Namespace
	}
	if strings.HasPrefix(raw, Namespace+"/") {
		return raw
	}
	return Namespace + "/" + raw
}

// ExpirationFromSeconds converts an optional client-supplied expiration.
// nil yields zero, which the broker replaces with its default.
func ExpirationFromSeconds(seconds *int) (time.Duration, error) {
	if seconds == nil {
		return 0, nil
	}
	// Bound the raw value first; large inputs would wrap when scaled to a Duration.
	if *seconds < 1 || *seconds > int(MaxExpiration/time.Second) {
		return 0, errInvalidExpiration()
	}
	return time.Duration(*seconds) * time.Second, nil
}

// ValidExpiration reports whether d is an acceptable presign expiration.
func ValidExpiration(d time.Duration) bool {
	return d >= time.Second && d <= MaxExpiration
}

func checkExpiration(d time.Duration) error {
	if !ValidExpiration(d) {
		return errInvalidExpiration()
	}
	return nil
}

func errInvalidExpiration() error {
	return invalid(ErrInvalidExpiration, "expiration must be between 1 and %d seconds", int(MaxExpiration/time.Second))
}

// Broker validates access requests and obtains presigned URLs from the gateway.
type Broker struct {
	store         storage.Gateway
	defaultExpiry time.Duration
}

// NewBroker creates a Broker. A defaultExpiry outside 1s..MaxExpiration falls
// back to DefaultExpiration.
func NewBroker(store storage.Gateway, defaultExpiry time.Duration) *Broker {
	if !ValidExpiration(defaultExpiry) {
		if defaultExpiry != 0 {
			log.Printf("presign: default expiry %s out of range, using %s", defaultExpiry, DefaultExpiration)
		}
		defaultExpiry = DefaultExpiration
	}
	return &Broker{store: store, defaultExpiry: defaultExpiry}
}

// DefaultExpiry returns the expiration used when a request sets none.
func (b *Broker) DefaultExpiry() time.Duration {
	return b.defaultExpiry
}

// Resolve validates req against policy and returns the final key and method
// without contacting storage.
func (b *Broker) Resolve(policy Policy, req Request) (string, storage.Method, error) {
	method, err := policy.checkMethod(req.Method)
	if err != nil {
		return "", "", err
	}

	key := NormalizeKey(req.Key)
	if method == storage.MethodPut && req.Filename != "" {
		key = storage.GenerateKey(key, req.Filename)
	}
	if policy.RejectBareNamespace && key == Namespace {
		return "", "", invalid(ErrEmptyKey, "key or filename is required")
	}
	return key, method, nil
}

// RequestAccess validates req against policy and returns a presigned grant.
// It writes nothing: a grant does not attach the key to any recipe.
func (b *Broker) RequestAccess(ctx context.Context, policy Policy, req Request) (*Grant, error) {
	key, method, err := b.Resolve(policy, req)
	if err != nil {
		return nil, err
	}

	expiry := req.Expiration
	if expiry == 0 {
		expiry = b.defaultExpiry
	}
	if err := checkExpiration(expiry); err != nil {
		return nil, err
	}

	url, err := b.store.Presign(ctx, key, method, expiry)
	if err != nil {
		return nil, fmt.Errorf("request access: %w", err)
	}

	return &Grant{URL: url, Key: key, Method: method, ExpiresIn: expiry}, nil
}

// IsValidation reports whether err is a client-correctable request error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
