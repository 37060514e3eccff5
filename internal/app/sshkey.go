package app

import (
	"strings"

	"github.com/juju/errors"
	"golang.org/x/crypto/ssh"
)

// sshKeyFingerprint checks that key is a single OpenSSH authorized key line
// and returns its SHA256 fingerprint. ParseAuthorizedKey skips lines it
// cannot parse, so anything beyond one non-blank line is rejected up front.
func sshKeyFingerprint(key string) (string, error) {
	if strings.ContainsAny(strings.TrimSpace(key), "\r\n") {
		return "", errors.NewNotValid(nil, "ssh_key must be a single line holding one public key")
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key))
	if err != nil {
		return "", errors.NewNotValid(nil, "ssh_key is not a valid OpenSSH public key: "+err.Error())
	}
	return ssh.FingerprintSHA256(pub), nil
}
