package ledger

import (
	"context"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/hyperledger/fabric-gateway/pkg/client"
	"github.com/hyperledger/fabric-gateway/pkg/identity"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/medrex/dlt-consent/pkg/config"
	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/types"
)

// Transient keys carrying the caller's identity to the chaincode
const (
	TransientCallerID     = "caller_id"
	TransientCallerSecret = "caller_secret"
	TransientCallerOrg    = "caller_org"
)

// GatewayClient talks to a Fabric peer through the Fabric Gateway service.
// The service signs with its own identity; the caller is passed as transient data so it never
// lands in the transaction's public arguments.
type GatewayClient struct {
	gateway        *client.Gateway
	conn           *grpc.ClientConn
	chaincode      string
	defaultChannel string
	logger         *logger.Logger
}

// NewGatewayClient connects to the gateway peer named in the config
func NewGatewayClient(cfg *config.FabricConfig, log *logger.Logger) (*GatewayClient, error) {
	conn, err := newGrpcConnection(cfg)
	if err != nil {
		return nil, err
	}

	id, err := newIdentity(cfg.MSPID, cfg.CertPath)
	if err != nil {
		conn.Close()
		return nil, err
	}

	sign, err := newSign(cfg.KeyPath)
	if err != nil {
		conn.Close()
		return nil, err
	}

	gw, err := client.Connect(
		id,
		client.WithSign(sign),
		client.WithClientConnection(conn),
		client.WithEvaluateTimeout(time.Duration(cfg.EvaluateTimeout)*time.Second),
		client.WithEndorseTimeout(time.Duration(cfg.SubmitTimeout)*time.Second),
		client.WithSubmitTimeout(time.Duration(cfg.SubmitTimeout)*time.Second),
		client.WithCommitStatusTimeout(time.Duration(cfg.SubmitTimeout)*time.Second),
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to gateway: %w", err)
	}

	log.WithComponent("ledger").WithField("endpoint", cfg.GatewayEndpoint).Info("Connected to Fabric gateway")

	return &GatewayClient{
		gateway:        gw,
		conn:           conn,
		chaincode:      cfg.ChaincodeID,
		defaultChannel: cfg.ChannelName,
		logger:         log,
	}, nil
}

// Query evaluates a transaction proposal on the gateway peer
func (c *GatewayClient) Query(ctx context.Context, caller types.Caller, function string, args []string) ([]byte, error) {
	proposal, err := c.contract(caller).NewProposal(function,
		client.WithArguments(args...),
		client.WithTransient(transient(caller)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}

	return proposal.EvaluateWithContext(ctx)
}

// Invoke endorses, submits and waits for the commit of a transaction
func (c *GatewayClient) Invoke(ctx context.Context, caller types.Caller, function string, args []string) (*types.TxResult, error) {
	proposal, err := c.contract(caller).NewProposal(function,
		client.WithArguments(args...),
		client.WithTransient(transient(caller)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}

	txn, err := proposal.EndorseWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("endorsement failed: %w", err)
	}

	commit, err := txn.SubmitWithContext(ctx)
	if err != nil {
		return &types.TxResult{TxID: txn.TransactionID()}, fmt.Errorf("submit failed: %w", err)
	}

	status, err := commit.StatusWithContext(ctx)
	if err != nil {
		return &types.TxResult{TxID: txn.TransactionID()}, fmt.Errorf("commit status unavailable: %w", err)
	}

	result := &types.TxResult{
		TxID:    status.TransactionID,
		Success: status.Successful,
		Payload: txn.Result(),
	}
	if !status.Successful {
		result.Message = fmt.Sprintf("transaction %s failed to commit with status code %d", status.TransactionID, int32(status.Code))
	}
	return result, nil
}

// Close releases the gateway and its gRPC connection
func (c *GatewayClient) Close() error {
	c.gateway.Close()
	return c.conn.Close()
}

func (c *GatewayClient) contract(caller types.Caller) *client.Contract {
	channel := caller.Channel
	if channel == "" {
		channel = c.defaultChannel
	}
	return c.gateway.GetNetwork(channel).GetContract(c.chaincode)
}

func transient(caller types.Caller) map[string][]byte {
	return map[string][]byte{
		TransientCallerID:     []byte(caller.ID),
		TransientCallerSecret: []byte(caller.Secret),
		TransientCallerOrg:    []byte(caller.Org),
	}
}

func newGrpcConnection(cfg *config.FabricConfig) (*grpc.ClientConn, error) {
	creds := insecure.NewCredentials()
	if cfg.TLSEnabled {
		pem, err := os.ReadFile(cfg.TLSCertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read TLS certificate: %w", err)
		}
		cert, err := identity.CertificateFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TLS certificate: %w", err)
		}
		pool := x509.NewCertPool()
		pool.AddCert(cert)
		creds = credentials.NewClientTLSFromCert(pool, cfg.GatewayHostOverride)
	}

	conn, err := grpc.NewClient(cfg.GatewayEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}
	return conn, nil
}

func newIdentity(mspID, certPath string) (*identity.X509Identity, error) {
	pem, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}

	cert, err := identity.CertificateFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return identity.NewX509Identity(mspID, cert)
}

func newSign(keyPath string) (identity.Sign, error) {
	pem, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	key, err := identity.PrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return identity.NewPrivateKeySign(key)
}
