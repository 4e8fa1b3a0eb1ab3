package jws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anvilresearch/jose-sub000/internal/logger"
	"github.com/anvilresearch/jose-sub000/pkg/base64"
	"github.com/anvilresearch/jose-sub000/pkg/header"
	"github.com/anvilresearch/jose-sub000/pkg/jwa"
	"golang.org/x/sync/errgroup"
)

// Codec encodes, verifies, and resolves keys for tokens. A Codec is safe
// for concurrent use; Tokens are not.
type Codec struct {
	registry  *jwa.Registry
	validator Validator
	logger    *slog.Logger
	critical  []string
}

// Option configures a Codec.
type Option func(*Codec)

// WithRegistry selects the algorithm registry. The default is jwa.Default.
func WithRegistry(r *jwa.Registry) Option {
	return func(c *Codec) { c.registry = r }
}

// WithValidator adds a Validator that runs after the built-in header rules.
func WithValidator(v Validator) Option {
	return func(c *Codec) { c.validator = v }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) { c.logger = l.With(logger.Component("jws")) }
}

// WithCriticalHeaders lists the extension parameters the codec accepts in
// "crit".
func WithCriticalHeaders(names ...string) Option {
	return func(c *Codec) { c.critical = append(c.critical, names...) }
}

// NewCodec returns a codec configured by opts.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		registry: jwa.Default,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the codec's algorithm registry.
func (c *Codec) Registry() *jwa.Registry {
	return c.registry
}

var defaultCodec = NewCodec()

// Encode encodes t with the default codec.
func Encode(ctx context.Context, t *Token) (string, error) {
	return defaultCodec.Encode(ctx, t)
}

// Verify verifies t with the default codec.
func Verify(ctx context.Context, t *Token) (bool, error) {
	return defaultCodec.Verify(ctx, t)
}

// ResolveKeys attaches keys from candidate to t with the default codec.
func ResolveKeys(ctx context.Context, t *Token, candidate any) (bool, error) {
	return defaultCodec.ResolveKeys(ctx, t, candidate)
}

// signed is the outcome of signing one descriptor.
type signed struct {
	protected string
	signature string
}

// Encode signs every descriptor that has a key, or uses "none", and
// serializes t.
//
// A descriptor that already carries a signature and has no key is passed
// through unchanged. On error nothing is written and t is left as it was.
func (c *Codec) Encode(ctx context.Context, t *Token) (string, error) {
	start := time.Now()

	if t == nil {
		return "", validationErrorf("nil token")
	}
	if err := c.validate(ctx, t); err != nil {
		return "", err
	}
	if len(t.Signatures) == 0 {
		return "", missingSignatureError(nil)
	}

	payload, err := t.encodedPayload()
	if err != nil {
		return "", validationError(err)
	}

	// Resolve every adapter before signing anything.
	adapters := make([]jwa.Adapter, len(t.Signatures))
	for i, sig := range t.Signatures {
		if sig.signed && sig.Key == nil {
			continue
		}

		alg, _ := sig.Algorithm()
		adapter, err := c.registry.Normalize(jwa.OperationSign, alg)
		if err != nil {
			return "", err
		}

		if sig.Key == nil && alg != jwa.None {
			return "", keyResolutionError("missing key", fmt.Errorf("signature %d has no key", i))
		}

		adapters[i] = adapter
	}

	results := make([]signed, len(t.Signatures))

	g, gctx := errgroup.WithContext(ctx)
	for i, sig := range t.Signatures {
		g.Go(func() error {
			if adapters[i] == nil {
				protected, err := sig.encodedProtected()
				if err != nil {
					return validationError(err)
				}
				results[i] = signed{protected: protected, signature: sig.signature}
				return nil
			}

			protected, err := sig.Protected.Base64URLString()
			if err != nil {
				return validationError(err)
			}

			signature, err := adapters[i].Sign(gctx, sig.Key, signingInput(protected, payload))
			if err != nil {
				return err
			}

			results[i] = signed{protected: protected, signature: signature}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.DebugContext(ctx, "failed to encode token", logger.Serialization(t.Serialization.String()), logger.Error(err))
		return "", err
	}

	out, err := c.serialize(t, payload, results)
	if err != nil {
		return "", err
	}

	t.bindPayload(payload)
	for i, sig := range t.Signatures {
		if adapters[i] != nil {
			sig.bindProtected(results[i].protected)
			sig.SetValue(results[i].signature)
		}
	}

	c.logger.DebugContext(ctx, "encoded token",
		logger.Serialization(t.Serialization.String()),
		logger.Count(len(t.Signatures)),
		logger.Elapsed(start),
	)

	return out, nil
}

// jsonSignature is the wire form of one signature in the JSON
// serializations.
type jsonSignature struct {
	Protected string            `json:"protected,omitempty"`
	Header    header.Parameters `json:"header,omitempty"`
	Signature string            `json:"signature"`
}

type jsonFlattened struct {
	Payload   json.RawMessage   `json:"payload"`
	Protected string            `json:"protected,omitempty"`
	Header    header.Parameters `json:"header,omitempty"`
	Signature string            `json:"signature"`
}

type jsonGeneral struct {
	Payload    json.RawMessage `json:"payload"`
	Signatures []jsonSignature `json:"signatures"`
}

func (c *Codec) serialize(t *Token, payload string, results []signed) (string, error) {
	var payloadJSON json.RawMessage

	switch t.Serialization {
	case Compact:
		r := results[0]
		return strings.Join([]string{r.protected, payload, r.signature}, "."), nil
	case Flattened, General:
		b, err := json.Marshal(payload)
		if err != nil {
			return "", validationError(err)
		}
		payloadJSON = b
	case Document, FlattenedDocument:
		b, err := base64.Decode(payload)
		if err != nil {
			return "", validationError(err)
		}
		if !json.Valid(b) {
			return "", validationErrorf("%s payload must be JSON", t.Serialization)
		}
		payloadJSON = b
	}

	var v any
	if t.Serialization.single() {
		r := results[0]
		v = jsonFlattened{
			Payload:   payloadJSON,
			Protected: r.protected,
			Header:    t.Signatures[0].Header,
			Signature: r.signature,
		}
	} else {
		sigs := make([]jsonSignature, len(results))
		for i, r := range results {
			sigs[i] = jsonSignature{
				Protected: r.protected,
				Header:    t.Signatures[i].Header,
				Signature: r.signature,
			}
		}
		v = jsonGeneral{Payload: payloadJSON, Signatures: sigs}
	}

	b, err := base64.MarshalJSON(v)
	if err != nil {
		return "", validationError(err)
	}
	return string(b), nil
}
