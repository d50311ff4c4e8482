package ledger

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/dlt-consent/pkg/config"
	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/types"
)

// writeTestCredentials writes a self-signed certificate and its PKCS#8 key into dir
func writeTestCredentials(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "consent-service", Organization: []string{"Org1MSP"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath
}

func TestGatewayIdentity(t *testing.T) {
	certPath, keyPath := writeTestCredentials(t, t.TempDir())

	t.Run("loads identity and signer", func(t *testing.T) {
		id, err := newIdentity("Org1MSP", certPath)
		require.NoError(t, err)
		sign, err := newSign(keyPath)
		require.NoError(t, err)

		sig, err := sign([]byte("digest-digest-digest-digest-0032"))

		// Assertions
		assert.Equal(t, "Org1MSP", id.MspID())
		assert.NoError(t, err)
		assert.NotEmpty(t, sig)
	})

	t.Run("missing files", func(t *testing.T) {
		_, err := newIdentity("Org1MSP", filepath.Join(t.TempDir(), "missing.pem"))
		assert.Error(t, err)

		_, err = newSign(filepath.Join(t.TempDir(), "missing.pem"))
		assert.Error(t, err)
	})

	t.Run("tls enabled without a certificate", func(t *testing.T) {
		_, err := newGrpcConnection(&config.FabricConfig{
			GatewayEndpoint: "localhost:7051",
			TLSEnabled:      true,
			TLSCertPath:     filepath.Join(t.TempDir(), "missing.pem"),
		})
		assert.Error(t, err)
	})
}

func TestGatewayClientUnreachablePeer(t *testing.T) {
	certPath, keyPath := writeTestCredentials(t, t.TempDir())

	c, err := NewGatewayClient(&config.FabricConfig{
		GatewayEndpoint: "127.0.0.1:1",
		MSPID:           "Org1MSP",
		CertPath:        certPath,
		KeyPath:         keyPath,
		ChannelName:     "healthcare",
		ChaincodeID:     "solution",
		EvaluateTimeout: 2,
		SubmitTimeout:   2,
	}, logger.NewDiscard())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = c.Query(ctx, types.Caller{ID: "pat1"}, FnGetOrgs, nil)
	assert.Error(t, err)

	_, err = c.Invoke(ctx, types.Caller{ID: "pat1"}, FnPutUserInOrg, []string{"u1", "org1", "false"})
	assert.Error(t, err)
}

func TestTransientCarriesCaller(t *testing.T) {
	m := transient(types.Caller{ID: "pat1", Secret: "s1", Org: "org1"})

	assert.Equal(t, []byte("pat1"), m[TransientCallerID])
	assert.Equal(t, []byte("s1"), m[TransientCallerSecret])
	assert.Equal(t, []byte("org1"), m[TransientCallerOrg])
}
