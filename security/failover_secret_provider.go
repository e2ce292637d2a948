package security

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/msahq/go-verification/core"
)

// FailurePolicy controls what happens when the primary secret provider
// fails: strict_fail surfaces the error, fallback_allowed retries the
// operation against a configured secondary provider.
type FailurePolicy string

const (
	FailurePolicyStrict   FailurePolicy = "strict_fail"
	FailurePolicyFallback FailurePolicy = "fallback_allowed"
)

// Diagnostic describes a primary/fallback transition. Hooks receive one
// event per failure or recovery so operators can alert on degraded key
// material without the provider itself needing a logger.
type Diagnostic struct {
	OccurredAt time.Time
	Operation  string
	Policy     FailurePolicy
	Outcome    string
	Primary    string
	Fallback   string
	Error      string
}

type DiagnosticHook func(event Diagnostic)

type FailoverOption func(*FailoverSecretProvider)

type keyMetadata struct {
	KeyID   string
	Version int
}

// FailoverSecretProvider wraps a primary core.SecretProvider and, under the
// fallback policy, a secondary one used when the primary fails.
type FailoverSecretProvider struct {
	primary  core.SecretProvider
	fallback core.SecretProvider
	policy   FailurePolicy
	hook     DiagnosticHook
	now      func() time.Time

	mu             sync.RWMutex
	lastEncryption keyMetadata
}

func NewFailoverSecretProvider(primary core.SecretProvider, opts ...FailoverOption) (*FailoverSecretProvider, error) {
	if primary == nil {
		return nil, fmt.Errorf("security: primary secret provider is required")
	}
	provider := &FailoverSecretProvider{
		primary: primary,
		policy:  FailurePolicyStrict,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	provider.policy = normalizeFailurePolicy(provider.policy)
	if provider.policy == FailurePolicyFallback && provider.fallback == nil {
		return nil, fmt.Errorf("security: fallback policy requires a configured fallback secret provider")
	}
	if provider.now == nil {
		provider.now = func() time.Time { return time.Now().UTC() }
	}
	provider.recordMetadata(provider.primary)
	return provider, nil
}

func WithFallbackSecretProvider(provider core.SecretProvider) FailoverOption {
	return func(f *FailoverSecretProvider) {
		if f == nil {
			return
		}
		f.fallback = provider
	}
}

func WithFailurePolicy(policy FailurePolicy) FailoverOption {
	return func(f *FailoverSecretProvider) {
		if f == nil {
			return
		}
		f.policy = normalizeFailurePolicy(policy)
	}
}

func WithDiagnostics(hook DiagnosticHook) FailoverOption {
	return func(f *FailoverSecretProvider) {
		if f == nil {
			return
		}
		f.hook = hook
	}
}

func WithFailoverClock(now func() time.Time) FailoverOption {
	return func(f *FailoverSecretProvider) {
		if f == nil {
			return
		}
		f.now = now
	}
}

func (p *FailoverSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	return p.withFailover(ctx, "encrypt", true, func(provider core.SecretProvider) ([]byte, error) {
		return provider.Encrypt(ctx, plaintext)
	})
}

func (p *FailoverSecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("security: ciphertext is required")
	}
	return p.withFailover(ctx, "decrypt", false, func(provider core.SecretProvider) ([]byte, error) {
		return provider.Decrypt(ctx, ciphertext)
	})
}

// withFailover runs op against the primary provider, then retries against the
// fallback when the policy allows it. trackKey marks operations whose
// succeeding provider becomes the metadata source for later envelopes.
func (p *FailoverSecretProvider) withFailover(_ context.Context, operation string, trackKey bool, op func(core.SecretProvider) ([]byte, error)) ([]byte, error) {
	out, err := op(p.primary)
	if err == nil {
		if trackKey {
			p.recordMetadata(p.primary)
		}
		return out, nil
	}
	p.emit(operation, "primary_failed", err)
	if p.policy == FailurePolicyStrict || p.fallback == nil {
		return nil, fmt.Errorf("security: primary %s failed with %s policy: %w", operation, p.policy, err)
	}

	out, fallbackErr := op(p.fallback)
	if fallbackErr != nil {
		p.emit(operation, "fallback_failed", fallbackErr)
		return nil, fmt.Errorf("security: primary %s failed: %v; fallback %s failed: %w", operation, err, operation, fallbackErr)
	}
	if trackKey {
		p.recordMetadata(p.fallback)
	}
	p.emit(operation, "fallback_succeeded", err)
	return out, nil
}

// Metadata reports the key id and version of the provider that performed the
// most recent successful encryption.
func (p *FailoverSecretProvider) Metadata() (string, int) {
	if p == nil {
		return "", 0
	}
	p.mu.RLock()
	last := p.lastEncryption
	p.mu.RUnlock()
	if strings.TrimSpace(last.KeyID) != "" && last.Version > 0 {
		return last.KeyID, last.Version
	}
	if keyID, version, ok := readProviderMetadata(p.primary); ok {
		return keyID, version
	}
	if keyID, version, ok := readProviderMetadata(p.fallback); ok {
		return keyID, version
	}
	return "", 0
}

func (p *FailoverSecretProvider) emit(operation string, outcome string, err error) {
	if p == nil || p.hook == nil {
		return
	}
	now := p.now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	p.hook(Diagnostic{
		OccurredAt: now().UTC(),
		Operation:  operation,
		Policy:     p.policy,
		Outcome:    outcome,
		Primary:    describeSecretProvider(p.primary),
		Fallback:   describeSecretProvider(p.fallback),
		Error:      msg,
	})
}

func (p *FailoverSecretProvider) recordMetadata(provider core.SecretProvider) {
	if p == nil {
		return
	}
	keyID, version, ok := readProviderMetadata(provider)
	if !ok {
		return
	}
	p.mu.Lock()
	p.lastEncryption = keyMetadata{KeyID: keyID, Version: version}
	p.mu.Unlock()
}

func normalizeFailurePolicy(policy FailurePolicy) FailurePolicy {
	normalized := FailurePolicy(strings.ToLower(strings.TrimSpace(string(policy))))
	switch normalized {
	case FailurePolicyFallback:
		return FailurePolicyFallback
	default:
		return FailurePolicyStrict
	}
}

func readProviderMetadata(provider core.SecretProvider) (string, int, bool) {
	if provider == nil {
		return "", 0, false
	}
	metadataProvider, ok := provider.(interface{ Metadata() (string, int) })
	if !ok {
		return "", 0, false
	}
	keyID, version := metadataProvider.Metadata()
	keyID = strings.TrimSpace(keyID)
	if keyID == "" || version <= 0 {
		return "", 0, false
	}
	return keyID, version, true
}

func describeSecretProvider(provider core.SecretProvider) string {
	if provider == nil {
		return ""
	}
	label := reflect.TypeOf(provider).String()
	if keyID, version, ok := readProviderMetadata(provider); ok {
		return fmt.Sprintf("%s(%s:%d)", label, keyID, version)
	}
	return label
}

var _ core.SecretProvider = (*FailoverSecretProvider)(nil)
