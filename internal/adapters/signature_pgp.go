package adapters

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/ports"
)

// PGPSignatureAdapter verifies armored detached OpenPGP signatures
// against an armored public keyring.
type PGPSignatureAdapter struct{}

func NewPGPSignatureAdapter() PGPSignatureAdapter {
	return PGPSignatureAdapter{}
}

// VerifyDetached returns the signer's key fingerprint.
func (a PGPSignatureAdapter) VerifyDetached(ctx context.Context, artifactPath string, signaturePath string, keyringPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(keyringPath) == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("keyring path is empty")
	}
	keyringFile, err := os.Open(keyringPath)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("keyring not found: %s", keyringPath)).
			WithCause(err)
	}
	defer keyringFile.Close()
	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to read armored keyring").
			WithCause(err)
	}

	artifact, err := os.Open(artifactPath)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("artifact not found").
			WithCause(err)
	}
	defer artifact.Close()
	signature, err := os.Open(signaturePath)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("signature not found").
			WithCause(err)
	}
	defer signature.Close()

	signer, err := openpgp.CheckArmoredDetachedSignature(keyring, artifact, signature, nil)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("signature verification failed").
			WithCause(err)
	}
	fingerprint := fmt.Sprintf("%X", signer.PrimaryKey.Fingerprint)
	log.Debug().Str("signer", fingerprint).Msg("signature verified")
	return fingerprint, nil
}

var _ ports.SignaturePort = PGPSignatureAdapter{}
