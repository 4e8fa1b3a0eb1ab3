package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anvilresearch/jose-sub000/internal/logger"
	"github.com/anvilresearch/jose-sub000/pkg/header"
	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/jws"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type signOptions struct {
	alg           string
	keys          []string
	kid           string
	jti           bool
	serialization string
	headers       map[string]string
}

func newSignCmd(a *app) *cobra.Command {
	opts := &signOptions{}

	cmd := &cobra.Command{
		Use:   "sign [payload]",
		Short: "Sign a JSON payload",
		Long:  "Signs a JSON payload with one or more keys. The payload can be a file path, a raw JSON string, or piped via stdin. Keys are JWK or PEM files; pass --key more than once for a multi-signature JSON or document serialization.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSign(cmd, a, opts, argument(args))
		},
	}

	cmd.Flags().StringVar(&opts.alg, "alg", "", "Signing algorithm (defaults to the key's \"alg\")")
	cmd.Flags().StringArrayVar(&opts.keys, "key", nil, "Signing key: a JWK or PEM file, or an inline JWK")
	cmd.Flags().StringVar(&opts.kid, "kid", "", "Key ID for the protected header (defaults to the key's \"kid\")")
	cmd.Flags().BoolVar(&opts.jti, "jti", false, "Add a random \"jti\" claim")
	cmd.Flags().StringVar(&opts.serialization, "serialization", jws.Compact.String(), "compact, flattened, json, document, or flattened-document")
	cmd.Flags().StringToStringVar(&opts.headers, "header", nil, "Extra protected header parameters (name=value)")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func runSign(cmd *cobra.Command, a *app, opts *signOptions, input string) error {
	ctx := cmd.Context()
	start := time.Now()

	serialization, err := jws.ParseSerialization(opts.serialization)
	if err != nil {
		return err
	}

	raw, err := readInput(cmd, input)
	if err != nil {
		return err
	}

	var payload any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("payload must be JSON: %w", err)
	}

	if opts.jti {
		claims, ok := payload.(map[string]any)
		if !ok {
			return fmt.Errorf("--jti requires a JSON object payload")
		}
		claims["jti"] = uuid.NewString()
	}

	signatures := make([]*jws.Signature, 0, len(opts.keys))
	for _, name := range opts.keys {
		data, err := readInput(cmd, name)
		if err != nil {
			return err
		}

		key, err := a.signingKey(ctx, data, opts.alg)
		if err != nil {
			return fmt.Errorf("loading key %s: %w", name, err)
		}

		protected := header.Parameters{}
		for param, value := range opts.headers {
			protected[param] = value
		}
		protected[header.Algorithm] = key.Algorithm()
		if opts.alg != "" {
			protected[header.Algorithm] = opts.alg
		}

		kid := opts.kid
		if kid == "" {
			kid = jwk.StringParam(key.Value, jwk.KeyID)
		}
		if kid != "" {
			protected[header.KeyID] = kid
		}

		signatures = append(signatures, jws.NewSignature(protected, nil, key.Handle))
	}

	token := jws.New(serialization, payload, signatures...)

	out, err := a.codec.Encode(ctx, token)
	if err != nil {
		return err
	}

	a.log.DebugContext(ctx, "signed token",
		logger.Component("cli"),
		logger.Serialization(serialization.String()),
		logger.Count(len(signatures)),
		logger.Elapsed(start),
	)

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
