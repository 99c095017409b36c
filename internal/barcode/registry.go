package barcode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/optica-pos/internal/obs"
	"github.com/noah-isme/optica-pos/internal/resilience"
)

var (
	// ErrExhausted is returned when every attempt produced an already reserved code.
	ErrExhausted = errors.New("barcode: no free code after max attempts")
	// ErrTaken is returned by Reserve when the code is already reserved.
	ErrTaken = errors.New("barcode: code already reserved")
	// ErrUnavailable is returned while the reservation store is failing.
	ErrUnavailable = errors.New("barcode: reservation store unavailable")
)

const defaultMaxAttempts = 8

// Registry hands out generated codes, reserving each one in Redis so that
// replicas never print the same label twice. With a nil Client it issues
// unreserved codes straight from the generator. Redis calls go through
// Breaker when one is set.
type Registry struct {
	Client      *redis.Client
	Generator   *Generator
	TTL         time.Duration
	MaxAttempts int
	Prefix      string
	Breaker     *resilience.Breaker
	Logger      zerolog.Logger
}

func (r *Registry) claim(ctx context.Context, code string) (bool, error) {
	var ok bool
	err := r.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		ok, err = r.Client.SetNX(ctx, r.key(code), time.Now().UTC().Format(time.RFC3339), r.TTL).Result()
		return err
	})
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return false, ErrUnavailable
	}
	return ok, err
}

func (r *Registry) key(code string) string {
	prefix := r.Prefix
	if prefix == "" {
		prefix = "barcode:reserved:"
	}
	return prefix + code
}

// Issue generates one code and reserves it.
func (r *Registry) Issue(ctx context.Context) (string, error) {
	if r.Client == nil {
		code := r.Generator.Generate()
		obs.ObserveBarcodeIssued("unreserved")
		return code, nil
	}
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	for i := 0; i < attempts; i++ {
		code := r.Generator.Generate()
		ok, err := r.claim(ctx, code)
		if err != nil {
			obs.ObserveBarcodeIssued("error")
			if errors.Is(err, ErrUnavailable) {
				return "", err
			}
			return "", fmt.Errorf("reserve barcode: %w", err)
		}
		if ok {
			obs.ObserveBarcodeIssued("reserved")
			return code, nil
		}
		obs.ObserveBarcodeIssued("collision")
		r.Logger.Debug().Str("code", code).Int("attempt", i+1).Msg("barcode collision")
	}
	return "", ErrExhausted
}

// IssueN issues n codes in order, stopping at the first failure.
func (r *Registry) IssueN(ctx context.Context, n int) ([]string, error) {
	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		code, err := r.Issue(ctx)
		if err != nil {
			return codes, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// Reserve claims an externally supplied code. The code must validate.
func (r *Registry) Reserve(ctx context.Context, code string) error {
	if !Validate(code) {
		return fmt.Errorf("%w: %q is not a valid EAN-13 code", ErrMalformed, code)
	}
	if r.Client == nil {
		return nil
	}
	ok, err := r.claim(ctx, code)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return err
		}
		return fmt.Errorf("reserve barcode: %w", err)
	}
	if !ok {
		return ErrTaken
	}
	return nil
}

// Reserved reports whether code is currently held. Always false without Redis.
func (r *Registry) Reserved(ctx context.Context, code string) (bool, error) {
	if r.Client == nil {
		return false, nil
	}
	var n int64
	err := r.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		n, err = r.Client.Exists(ctx, r.key(code)).Result()
		return err
	})
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return false, ErrUnavailable
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
