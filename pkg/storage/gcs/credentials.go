package gcs

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/angelmondragon/printshop-backend/pkg/config"
)

const storageScope = "https://www.googleapis.com/auth/devstorage.read_write"

// urlSigner holds the service account key used for V2 signed urls.
type urlSigner struct {
	email string
	key   *rsa.PrivateKey
}

func (s *urlSigner) sign(payload []byte) ([]byte, error) {
	sum := sha256.Sum256(payload)
	return rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, sum[:])
}

// credentialsFrom resolves the token source and, for key-based credentials, a url signer.
// Inline JSON wins over a key file; with neither, application default credentials are used
// and signed urls are unavailable.
func credentialsFrom(ctx context.Context, gcp config.GCPConfig) (oauth2.TokenSource, *urlSigner, error) {
	keyJSON := []byte(strings.TrimSpace(gcp.CredentialsJSON))
	if len(keyJSON) == 0 && gcp.ApplicationCredentials != "" {
		raw, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, nil, fmt.Errorf("read credentials file: %w", err)
		}
		keyJSON = raw
	}

	if len(keyJSON) == 0 {
		ts, err := google.DefaultTokenSource(ctx, storageScope)
		if err != nil {
			return nil, nil, fmt.Errorf("default credentials: %w", err)
		}
		return ts, nil, nil
	}

	signer, err := signerFromJSON(keyJSON)
	if err != nil {
		return nil, nil, err
	}
	creds, err := google.CredentialsFromJSON(ctx, keyJSON, storageScope)
	if err != nil {
		return nil, nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	return creds.TokenSource, signer, nil
}

func signerFromJSON(keyJSON []byte) (*urlSigner, error) {
	jwtCfg, err := google.JWTConfigFromJSON(keyJSON, storageScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	if jwtCfg.Email == "" || len(jwtCfg.PrivateKey) == 0 {
		return nil, errors.New("service account key is missing client_email or private_key")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(jwtCfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parse service account private key: %w", err)
	}
	return &urlSigner{email: jwtCfg.Email, key: key}, nil
}
