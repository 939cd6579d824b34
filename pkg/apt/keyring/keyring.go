// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyring verifies repository signatures against a trusted
// maintainer keyring.
package keyring

import (
	"bytes"
	"os"

	"github.com/ProtonMail/gopenpgp/v3/crypto"
	"github.com/pkg/errors"
)

// Keyring verifies OpenPGP signatures made by any key in a trusted
// keyring file. It implements apt.Verifier.
type Keyring struct {
	pgp  *crypto.PGPHandle
	keys *crypto.KeyRing
}

var armorPrefix = []byte("-----BEGIN PGP")

// Load reads the keyring at path. Both armored and binary key material
// are accepted.
func Load(path string) (*Keyring, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading keyring %s", path)
	}
	var key *crypto.Key
	if bytes.HasPrefix(bytes.TrimSpace(raw), armorPrefix) {
		key, err = crypto.NewKeyFromArmored(string(raw))
	} else {
		key, err = crypto.NewKey(raw)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing keyring %s", path)
	}
	keys, err := crypto.NewKeyRing(key)
	if err != nil {
		return nil, errors.Wrap(err, "building keyring")
	}
	return &Keyring{pgp: crypto.PGP(), keys: keys}, nil
}

// VerifyCleartext checks the signature of an inline-signed (cleartext)
// message and returns the message body.
func (k *Keyring) VerifyCleartext(signed []byte) ([]byte, error) {
	verifier, err := k.pgp.Verify().VerificationKeys(k.keys).New()
	if err != nil {
		return nil, errors.Wrap(err, "creating verifier")
	}
	result, err := verifier.VerifyCleartext(signed)
	if err != nil {
		return nil, errors.Wrap(err, "verifying cleartext signature")
	}
	if sigErr := result.SignatureError(); sigErr != nil {
		return nil, errors.Wrap(sigErr, "cleartext signature invalid")
	}
	return result.Cleartext(), nil
}

// VerifyDetached checks a detached signature over message. Armored and
// binary signatures are both accepted.
func (k *Keyring) VerifyDetached(message, sig []byte) error {
	encoding := crypto.Bytes
	if bytes.HasPrefix(bytes.TrimSpace(sig), armorPrefix) {
		encoding = crypto.Armor
	}
	verifier, err := k.pgp.Verify().VerificationKeys(k.keys).New()
	if err != nil {
		return errors.Wrap(err, "creating verifier")
	}
	result, err := verifier.VerifyDetached(message, sig, encoding)
	if err != nil {
		return errors.Wrap(err, "verifying detached signature")
	}
	if sigErr := result.SignatureError(); sigErr != nil {
		return errors.Wrap(sigErr, "detached signature invalid")
	}
	return nil
}
