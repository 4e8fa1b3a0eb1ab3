package main

import (
	"crypto"
	_ "crypto/sha512"
	"fmt"
	"strings"

	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/jwk/thumbprint"
	"github.com/anvilresearch/jose-sub000/pkg/keyutil"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Key ID schemes for generated keys.
const (
	kidThumbprint = "thumbprint"
	kidUUID       = "uuid"
)

// Output formats for generated keys.
const (
	formatJWK = "jwk"
	formatPEM = "pem"
)

var thumbprintHashes = map[string]crypto.Hash{
	"sha256": crypto.SHA256,
	"sha384": crypto.SHA384,
	"sha512": crypto.SHA512,
}

type generateOptions struct {
	alg     string
	kid     string
	kidType string
	format  string
	public  bool
}

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate and inspect JSON Web Keys",
	}

	cmd.AddCommand(
		newKeysGenerateCmd(a),
		newKeysThumbprintCmd(a),
	)

	return cmd
}

func newKeysGenerateCmd(a *app) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a key for an algorithm",
		Long:  "Generates a new key for the given algorithm and prints it as a JWK or PEM. JWKs are named by their RFC 7638 thumbprint unless --kid or --kid-type uuid is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysGenerate(cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.alg, "alg", "", "Algorithm the key is for, such as ES256 or HS256")
	cmd.Flags().StringVar(&opts.kid, "kid", "", "Key ID (defaults to a generated one)")
	cmd.Flags().StringVar(&opts.kidType, "kid-type", kidThumbprint, "How to generate the key ID: thumbprint or uuid")
	cmd.Flags().StringVar(&opts.format, "format", formatJWK, "Output format: jwk or pem")
	cmd.Flags().BoolVar(&opts.public, "public", false, "Print only the public key")
	_ = cmd.MarkFlagRequired("alg")

	return cmd
}

func runKeysGenerate(cmd *cobra.Command, a *app, opts *generateOptions) error {
	if opts.kidType != kidThumbprint && opts.kidType != kidUUID {
		return fmt.Errorf("unknown --kid-type %q", opts.kidType)
	}

	private, err := keyutil.GenerateKey(opts.alg)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	switch opts.format {
	case formatPEM:
		signer, ok := private.(crypto.Signer)
		if !ok {
			return fmt.Errorf("%s keys are symmetric and cannot be written as PEM", opts.alg)
		}
		var b []byte
		if opts.public {
			b, err = keyutil.MarshalPublicKey(signer.Public())
		} else {
			b, err = keyutil.MarshalPrivateKey(private)
		}
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case formatJWK:
	default:
		return fmt.Errorf("unknown --format %q", opts.format)
	}

	value, err := jwk.ValueFromPrivateKey(private)
	if err != nil {
		return err
	}

	value[jwk.Algorithm] = opts.alg
	value[jwk.PublicKeyUse] = jwk.UseSignature
	if strings.HasPrefix(opts.alg, "A") && strings.HasSuffix(opts.alg, "GCM") {
		value[jwk.PublicKeyUse] = jwk.UseEncryption
	}

	kid := opts.kid
	if kid == "" {
		switch opts.kidType {
		case kidUUID:
			kid = uuid.NewString()
		default:
			kid, err = thumbprint.GenerateString(value, crypto.SHA256)
			if err != nil {
				return err
			}
		}
	}
	value[jwk.KeyID] = kid

	// The key must import for its algorithm.
	if _, err := a.registry.ImportKeyFor(cmd.Context(), opts.alg, value); err != nil {
		return err
	}

	if opts.public {
		if value[jwk.KeyType] == jwk.KeyTypeOctet {
			return fmt.Errorf("%s keys are symmetric and have no public part", opts.alg)
		}
		value = jwk.PublicValue(value)
	}

	return printJSON(w, value)
}

func newKeysThumbprintCmd(a *app) *cobra.Command {
	var hashName string

	cmd := &cobra.Command{
		Use:   "thumbprint [jwk]",
		Short: "Print the RFC 7638 thumbprint of a JWK",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, ok := thumbprintHashes[strings.ToLower(hashName)]
			if !ok {
				return fmt.Errorf("unknown --hash %q", hashName)
			}

			data, err := readInput(cmd, argument(args))
			if err != nil {
				return err
			}

			value, err := jwk.Parse(data)
			if err != nil {
				return err
			}

			tp, err := thumbprint.GenerateString(value, h)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if a.jsonOutput {
				return printJSON(w, map[string]string{
					"thumbprint": tp,
					"hash":       h.String(),
				})
			}
			fmt.Fprintln(w, tp)
			return nil
		},
	}

	cmd.Flags().StringVar(&hashName, "hash", "sha256", "Hash function: sha256, sha384, or sha512")

	return cmd
}
