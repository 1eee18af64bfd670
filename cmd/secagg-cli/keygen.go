package main

import (
	"encoding/pem"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flwr-org/secagg/pkg/crypto"
)

func runKeygen(cmd *cobra.Command, args []string) error {
	ecdh1, err := crypto.GenerateECDHKeyPair()
	if err != nil {
		return fmt.Errorf("keygen: ecdh1: %w", err)
	}
	ecdh2, err := crypto.GenerateECDHKeyPair()
	if err != nil {
		return fmt.Errorf("keygen: ecdh2: %w", err)
	}
	sig, err := crypto.GenerateECDSAKeyPair()
	if err != nil {
		return fmt.Errorf("keygen: ecdsa: %w", err)
	}

	pk1, err := crypto.MarshalECDHPublicKey(ecdh1.Public)
	if err != nil {
		return err
	}
	pk2, err := crypto.MarshalECDHPublicKey(ecdh2.Public)
	if err != nil {
		return err
	}
	sigPub, err := crypto.MarshalECDSAPublicKey(sig.Public)
	if err != nil {
		return err
	}

	writePEM(os.Stdout, "SECAGG ECDH PUBLIC KEY (pk1)", pk1)
	writePEM(os.Stdout, "SECAGG ECDH PUBLIC KEY (pk2)", pk2)
	writePEM(os.Stdout, "SECAGG ECDSA PUBLIC KEY", sigPub)
	return nil
}

func writePEM(w *os.File, kind string, der []byte) {
	_ = pem.Encode(w, &pem.Block{Type: kind, Bytes: der})
}
