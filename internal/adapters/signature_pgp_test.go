package adapters

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signedArtifact struct {
	artifact    string
	signature   string
	keyring     string
	fingerprint string
}

func signArtifact(t *testing.T, payload []byte) signedArtifact {
	t.Helper()
	dir := t.TempDir()
	entity, err := openpgp.NewEntity("Stardate Releases", "", "releases@example.com", nil)
	require.NoError(t, err)

	var keyring bytes.Buffer
	w, err := armor.Encode(&keyring, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(w))
	require.NoError(t, w.Close())

	var signature bytes.Buffer
	require.NoError(t, openpgp.ArmoredDetachSign(&signature, entity, bytes.NewReader(payload), nil))

	out := signedArtifact{
		artifact:    filepath.Join(dir, "stardate-1.0.0.tar.gz"),
		signature:   filepath.Join(dir, "stardate-1.0.0.tar.gz.asc"),
		keyring:     filepath.Join(dir, "keyring.asc"),
		fingerprint: fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint),
	}
	require.NoError(t, os.WriteFile(out.artifact, payload, 0o644))
	require.NoError(t, os.WriteFile(out.signature, signature.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(out.keyring, keyring.Bytes(), 0o644))
	return out
}

func TestPGPSignatureAdapter_VerifyDetached(t *testing.T) {
	signed := signArtifact(t, []byte("release tarball"))

	signer, err := NewPGPSignatureAdapter().VerifyDetached(t.Context(), signed.artifact, signed.signature, signed.keyring)
	require.NoError(t, err)
	assert.Equal(t, signed.fingerprint, signer)
}

func TestPGPSignatureAdapter_TamperedArtifact(t *testing.T) {
	signed := signArtifact(t, []byte("release tarball"))
	require.NoError(t, os.WriteFile(signed.artifact, []byte("release tarball, modified"), 0o644))

	_, err := NewPGPSignatureAdapter().VerifyDetached(t.Context(), signed.artifact, signed.signature, signed.keyring)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "signature verification failed")
}

func TestPGPSignatureAdapter_UnknownSigner(t *testing.T) {
	signed := signArtifact(t, []byte("release tarball"))
	other := signArtifact(t, []byte("release tarball"))

	_, err := NewPGPSignatureAdapter().VerifyDetached(t.Context(), signed.artifact, signed.signature, other.keyring)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}

func TestPGPSignatureAdapter_MissingKeyring(t *testing.T) {
	signed := signArtifact(t, []byte("release tarball"))
	adapter := NewPGPSignatureAdapter()

	_, err := adapter.VerifyDetached(t.Context(), signed.artifact, signed.signature, "")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))

	_, err = adapter.VerifyDetached(t.Context(), signed.artifact, signed.signature, filepath.Join(t.TempDir(), "missing.asc"))
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
}
