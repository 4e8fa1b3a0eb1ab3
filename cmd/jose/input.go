package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/anvilresearch/jose-sub000/pkg/jwa"
	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/keyutil"
	"github.com/spf13/cobra"
)

var errNoInput = errors.New("no input provided (use a file path, a raw value, or pipe to stdin)")

// readInput reads a command argument: a file path, a raw value, or stdin
// when the argument is empty or "-".
func readInput(cmd *cobra.Command, input string) ([]byte, error) {
	input = strings.TrimSpace(input)

	if input == "" || input == "-" {
		in := cmd.InOrStdin()
		if f, ok := in.(*os.File); ok {
			stat, err := f.Stat()
			if err != nil {
				return nil, fmt.Errorf("cannot read stdin: %w", err)
			}
			if stat.Mode()&os.ModeCharDevice != 0 {
				return nil, errNoInput
			}
		}

		b, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		if len(bytes.TrimSpace(b)) == 0 {
			return nil, errNoInput
		}
		return bytes.TrimSpace(b), nil
	}

	if _, err := os.Stat(input); err == nil {
		b, err := os.ReadFile(input)
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", input, err)
		}
		return bytes.TrimSpace(b), nil
	}

	return []byte(input), nil
}

func argument(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func isPEM(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("-----BEGIN"))
}

func isKeySet(data []byte) bool {
	var probe struct {
		Keys json.RawMessage `json:"keys"`
	}
	return json.Unmarshal(data, &probe) == nil && probe.Keys != nil
}

// signingKey imports a PEM or JWK signing key for alg. An empty alg is
// taken from the JWK "alg" member.
func (a *app) signingKey(ctx context.Context, data []byte, alg jwa.Algorithm) (*jwk.Key, error) {
	if isPEM(data) {
		if alg == "" {
			return nil, fmt.Errorf("--alg is required for PEM keys")
		}
		return keyutil.ImportPEM(ctx, a.registry, bytes.NewReader(data), alg)
	}

	value, err := jwk.Parse(data)
	if err != nil {
		return nil, err
	}

	if alg == "" {
		alg = jwk.StringParam(value, jwk.Algorithm)
	}
	if alg == "" {
		return nil, fmt.Errorf("the key has no \"alg\", pass --alg")
	}

	if !jwk.IsPrivate(value) && jwk.StringParam(value, jwk.KeyType) != jwk.KeyTypeOctet {
		return nil, fmt.Errorf("signing requires a private or symmetric key")
	}

	return a.registry.ImportKeyFor(ctx, alg, value)
}

// verificationKeys parses a JWK or JWK set into a candidate for
// jws.Codec.ResolveKeys.
func verificationKeys(data []byte) (any, error) {
	if isKeySet(data) {
		set, err := jwk.ParseSet(data)
		if err != nil {
			return nil, err
		}
		if err := set.Validate(); err != nil {
			return nil, err
		}
		return set, nil
	}

	value, err := jwk.Parse(data)
	if err != nil {
		return nil, err
	}
	if err := jwk.Validate(value); err != nil {
		return nil, err
	}
	return value, nil
}
