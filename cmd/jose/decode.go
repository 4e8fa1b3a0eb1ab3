package main

import (
	"fmt"
	"io"

	"github.com/anvilresearch/jose-sub000/pkg/header"
	"github.com/anvilresearch/jose-sub000/pkg/jws"
	"github.com/spf13/cobra"
)

type decodedSignature struct {
	Protected header.Parameters `json:"protected,omitempty"`
	Header    header.Parameters `json:"header,omitempty"`
	Signature string            `json:"signature,omitempty"`
}

type decodedToken struct {
	Serialization string             `json:"serialization"`
	Payload       any                `json:"payload"`
	Signatures    []decodedSignature `json:"signatures"`
}

func newDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode [token]",
		Short: "Decode a token without verifying it",
		Long:  "Decodes a JWS or JWD in any serialization and prints its headers and payload. Input can be a file path, a raw token, or piped via stdin. Nothing is verified.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, a, argument(args))
		},
	}
}

func runDecode(cmd *cobra.Command, a *app, input string) error {
	raw, err := readInput(cmd, input)
	if err != nil {
		return err
	}

	token, err := jws.Decode(raw)
	if err != nil {
		return fmt.Errorf("decoding token: %w", err)
	}

	decoded := decodedToken{
		Serialization: token.Serialization.String(),
		Payload:       printablePayload(token.Payload),
	}
	for _, sig := range token.Signatures {
		decoded.Signatures = append(decoded.Signatures, decodedSignature{
			Protected: sig.Protected,
			Header:    sig.Header,
			Signature: sig.Value(),
		})
	}

	w := cmd.OutOrStdout()
	if a.jsonOutput {
		return printJSON(w, decoded)
	}
	return printDecoded(w, decoded)
}

// printablePayload turns a non-JSON payload into text.
func printablePayload(payload any) any {
	if b, ok := payload.([]byte); ok {
		return string(b)
	}
	return payload
}

func printDecoded(w io.Writer, decoded decodedToken) error {
	printSection(w, "Token")
	printField(w, "Serialization", decoded.Serialization)
	printField(w, "Signatures", len(decoded.Signatures))
	fmt.Fprintln(w)

	for i, sig := range decoded.Signatures {
		printSection(w, fmt.Sprintf("Signature %d", i+1))
		if len(sig.Protected) > 0 {
			labelColor.Fprintln(w, "  Protected:")
			if err := printIndentedJSON(w, sig.Protected); err != nil {
				return err
			}
		}
		if len(sig.Header) > 0 {
			labelColor.Fprintln(w, "  Header:")
			if err := printIndentedJSON(w, sig.Header); err != nil {
				return err
			}
		}
		labelColor.Fprint(w, "  Signature: ")
		if sig.Signature == "" {
			warnColor.Fprintln(w, "(unsigned)")
		} else {
			dimColor.Fprintln(w, sig.Signature)
		}
		fmt.Fprintln(w)
	}

	printSection(w, "Payload")
	return printIndentedJSON(w, decoded.Payload)
}
