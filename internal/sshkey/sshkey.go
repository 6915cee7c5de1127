// Package sshkey validates OpenSSH authorized_keys public key lines.
package sshkey

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// PublicKey is a parsed single-line OpenSSH public key.
type PublicKey struct {
	Algorithm   string
	Body        string
	Comment     string
	Fingerprint string
}

// Line returns the key in authorized_keys form.
func (k *PublicKey) Line() string {
	if k.Comment == "" {
		return k.Algorithm + " " + k.Body
	}
	return k.Algorithm + " " + k.Body + " " + k.Comment
}

var algorithmPrefixes = []string{"ssh-", "ecdsa-", "sk-"}

// Parse validates s as a single public key line of the form
// "<algorithm> <base64-body> [comment]".
func Parse(s string) (*PublicKey, error) {
	line := strings.TrimSpace(s)
	if line == "" {
		return nil, fmt.Errorf("public key is empty")
	}
	if strings.ContainsAny(line, "\r\n") {
		return nil, fmt.Errorf("public key must be a single line")
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, fmt.Errorf("public key must have an algorithm and a key body")
	}

	algorithm, body := fields[0], fields[1]
	if !hasAlgorithmPrefix(algorithm) {
		return nil, fmt.Errorf("unsupported key algorithm %q", algorithm)
	}
	if _, err := base64.StdEncoding.DecodeString(body); err != nil {
		return nil, fmt.Errorf("key body is not valid base64: %w", err)
	}

	key, comment, options, _, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	if len(options) > 0 {
		return nil, fmt.Errorf("public key must not carry authorized_keys options")
	}
	if key.Type() != algorithm {
		return nil, fmt.Errorf("key algorithm %q does not match key body (%s)", algorithm, key.Type())
	}

	return &PublicKey{
		Algorithm:   algorithm,
		Body:        body,
		Comment:     comment,
		Fingerprint: ssh.FingerprintSHA256(key),
	}, nil
}

// Validate reports whether s is an acceptable public key line.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}

func hasAlgorithmPrefix(algorithm string) bool {
	for _, p := range algorithmPrefixes {
		if strings.HasPrefix(algorithm, p) {
			return true
		}
	}
	return false
}
