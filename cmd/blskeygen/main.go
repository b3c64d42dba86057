// Copyright 2025 Certen Protocol
//
// blskeygen generates a BLS12-381 key pair and writes the private key
// (hex) and DER-wrapped public key to the given paths, adapted from the
// teacher's cmd/bls-zk-setup key-generation CLI.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/certen/http-certification-core/internal/certificate"
	"github.com/certen/http-certification-core/pkg/crypto/bls"
)

func main() {
	privPath := flag.String("priv-out", "bls_key.hex", "output path for the hex-encoded private key")
	pubPath := flag.String("pub-out", "bls_pub.der", "output path for the DER-wrapped root public key")
	flag.Parse()

	if err := run(*privPath, *pubPath); err != nil {
		fmt.Fprintf(os.Stderr, "blskeygen: %v\n", err)
		os.Exit(1)
	}
}

func run(privPath, pubPath string) error {
	if err := bls.Initialize(); err != nil {
		return fmt.Errorf("initialize bls: %w", err)
	}

	priv, pub, err := bls.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}

	der, err := certificate.WrapDERPublicKey(pub.Bytes())
	if err != nil {
		return fmt.Errorf("wrap public key: %w", err)
	}

	if err := os.WriteFile(privPath, []byte(priv.Hex()), 0600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, der, 0644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	fmt.Printf("wrote private key to %s, DER public key to %s\n", privPath, pubPath)
	return nil
}
