package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/anvilresearch/jose-sub000/internal/logger"
	"github.com/anvilresearch/jose-sub000/pkg/jwa"
	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/jws"
	"github.com/anvilresearch/jose-sub000/pkg/keyutil"
	"github.com/spf13/cobra"
)

var errNotVerified = errors.New("token not verified")

// Signature statuses.
const (
	statusVerified = "verified"
	statusInvalid  = "invalid"
	statusSkipped  = "skipped"
)

type verifyOptions struct {
	keys      []string
	jwksURL   string
	allowNone bool
}

type signatureResult struct {
	Index     int    `json:"index"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid,omitempty"`
	Status    string `json:"status"`
}

type verifyResult struct {
	Serialization string            `json:"serialization"`
	Verified      bool              `json:"verified"`
	Signatures    []signatureResult `json:"signatures"`
}

func newVerifyCmd(a *app) *cobra.Command {
	opts := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify [token]",
		Short: "Verify the signatures of a token",
		Long:  "Verifies every signature of a JWS or JWD. Keys come from JWK, JWK set, or PEM files (--key) and from a remote JWK set (--jwks-url). Each signature is matched to a key by its \"kid\". The command fails unless every signature verifies.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, a, opts, argument(args))
		},
	}

	cmd.Flags().StringArrayVar(&opts.keys, "key", nil, "Verification key: a JWK, JWK set, or PEM file, or an inline JWK")
	cmd.Flags().StringVar(&opts.jwksURL, "jwks-url", "", "URL of a JWK set to verify with")
	cmd.Flags().BoolVar(&opts.allowNone, "allow-none", false, "Accept unsecured signatures using the \"none\" algorithm")

	return cmd
}

func runVerify(cmd *cobra.Command, a *app, opts *verifyOptions, input string) error {
	ctx := cmd.Context()
	start := time.Now()

	if len(opts.keys) == 0 && opts.jwksURL == "" {
		return fmt.Errorf("at least one --key or --jwks-url is required")
	}

	raw, err := readInput(cmd, input)
	if err != nil {
		return err
	}

	token, err := jws.Decode(raw)
	if err != nil {
		return fmt.Errorf("decoding token: %w", err)
	}

	for i, sig := range token.Signatures {
		if alg, _ := sig.Algorithm(); alg != jwa.None {
			continue
		}
		if !opts.allowNone {
			return fmt.Errorf("signature %d uses the %q algorithm, pass --allow-none to accept it", i+1, jwa.None)
		}
		if sig.Value() != "" {
			return fmt.Errorf("signature %d uses the %q algorithm but carries a signature value", i+1, jwa.None)
		}
	}

	for _, name := range opts.keys {
		data, err := readInput(cmd, name)
		if err != nil {
			return err
		}
		if err := a.attachKeys(cmd, token, data); err != nil {
			return fmt.Errorf("loading key %s: %w", name, err)
		}
	}

	if opts.jwksURL != "" {
		cache, release, err := a.setCache(ctx)
		if err != nil {
			return err
		}
		defer release()

		set, err := cache.Get(ctx, opts.jwksURL)
		if err != nil {
			return err
		}
		if _, err := a.codec.ResolveKeys(ctx, token, set); err != nil {
			return err
		}
		a.log.DebugContext(ctx, "resolved keys from JWK set", logger.URL(opts.jwksURL), logger.Count(len(set.Keys)))
	}

	ok, err := a.codec.Verify(ctx, token)
	if err != nil {
		return err
	}

	result := verifyResult{
		Serialization: token.Serialization.String(),
		Verified:      ok,
	}
	for i, sig := range token.Signatures {
		alg, _ := sig.Algorithm()
		status := statusInvalid
		switch {
		case sig.Skipped():
			status = statusSkipped
			result.Verified = false
		case sig.Verified():
			status = statusVerified
		}
		result.Signatures = append(result.Signatures, signatureResult{
			Index:     i + 1,
			Algorithm: alg,
			KeyID:     sig.KeyID(),
			Status:    status,
		})
	}

	a.log.DebugContext(ctx, "verified token",
		logger.Component("cli"),
		logger.Serialization(result.Serialization),
		logger.Count(len(result.Signatures)),
		logger.Elapsed(start),
	)

	w := cmd.OutOrStdout()
	if a.jsonOutput {
		if err := printJSON(w, result); err != nil {
			return err
		}
	} else {
		printVerifyResult(w, result)
	}

	if !result.Verified {
		return errNotVerified
	}
	return nil
}

// attachKeys resolves the signature keys of token from a JWK, a JWK set,
// or a PEM key. A PEM key has no "kid", so it is attached to every
// signature that has no key yet.
func (a *app) attachKeys(cmd *cobra.Command, token *jws.Token, data []byte) error {
	ctx := cmd.Context()

	if isPEM(data) {
		for _, sig := range token.Signatures {
			alg, err := sig.Algorithm()
			if err != nil || alg == jwa.None || sig.Key != nil {
				continue
			}
			key, err := keyutil.ImportPEM(ctx, a.registry, bytes.NewReader(data), alg)
			if err != nil {
				return err
			}
			sig.Key = key.Handle
		}
		return nil
	}

	candidate, err := verificationKeys(data)
	if err != nil {
		return err
	}

	// A lone key with no "use" is taken to be a signing key.
	if value, ok := candidate.(jwk.Value); ok {
		if _, ok := value[jwk.PublicKeyUse]; !ok {
			value[jwk.PublicKeyUse] = jwk.UseSignature
		}
	}

	_, err = a.codec.ResolveKeys(ctx, token, candidate)
	return err
}

func printVerifyResult(w io.Writer, result verifyResult) {
	printSection(w, "Verification")
	printField(w, "Serialization", result.Serialization)

	for _, sig := range result.Signatures {
		labelColor.Fprintf(w, "  Signature %d: ", sig.Index)
		switch sig.Status {
		case statusVerified:
			successColor.Fprint(w, "✓ verified")
		case statusSkipped:
			warnColor.Fprint(w, "- skipped (no key)")
		default:
			errorColor.Fprint(w, "✗ invalid")
		}
		dimColor.Fprintf(w, " alg=%s", sig.Algorithm)
		if sig.KeyID != "" {
			dimColor.Fprintf(w, " kid=%s", sig.KeyID)
		}
		fmt.Fprintln(w)
	}

	if result.Verified {
		successColor.Fprintln(w, "Token verified")
	} else {
		errorColor.Fprintln(w, "Token not verified")
	}
}
