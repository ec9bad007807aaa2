package config_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/herder/pkg/cli/config"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

func TestGitHub_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.GitHub
		wantErr bool
	}{
		{name: "token", cfg: config.GitHub{Token: "ghp_x"}},
		{name: "app", cfg: config.GitHub{AppID: 1, InstallationID: 2, PrivateKey: "key"}},
		{name: "nothing", cfg: config.GitHub{}, wantErr: true},
		{name: "partial app", cfg: config.GitHub{Token: "ghp_x", AppID: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				gt.Error(t, err)
			} else {
				gt.NoError(t, err)
			}
		})
	}
}

func TestGitHub_Configure_Token(t *testing.T) {
	cfg := config.GitHub{Token: "ghp_x", BaseURL: "https://github.example.com/api/v3"}

	client, tokens, err := cfg.Configure()
	gt.NoError(t, err)
	gt.NotNil(t, client)

	token, err := tokens(context.Background())
	gt.NoError(t, err)
	gt.Value(t, token).Equal(types.GitHubToken("ghp_x"))
}

func TestGitHub_Configure_App(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	gt.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	keyFile := filepath.Join(t.TempDir(), "app.pem")
	gt.NoError(t, os.WriteFile(keyFile, keyPEM, 0600))

	for _, privateKey := range []string{string(keyPEM), keyFile} {
		cfg := config.GitHub{AppID: 1, InstallationID: 2, PrivateKey: privateKey}

		// no token is minted until a clone or push asks for one
		client, tokens, err := cfg.Configure()
		gt.NoError(t, err)
		gt.NotNil(t, client)
		gt.NotNil(t, tokens)
	}
}
