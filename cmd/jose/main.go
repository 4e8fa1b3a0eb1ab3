// Command jose signs, decodes, and verifies JOSE tokens and manages JWKs.
//
//	jose keys generate --alg ES256 > key.json
//	echo '{"sub":"alice"}' | jose sign --key key.json > token.txt
//	jose verify --key key.json token.txt
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := execute(ctx, os.Args[1:]); err != nil {
		stop()
		os.Exit(1)
	}
}

func execute(ctx context.Context, args []string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		errorColor.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}
