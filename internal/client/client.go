package client

import (
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	replayv1 "github.com/cartridge/replay/pkg/replay/v1"
)

// Client is a connection to a replay service.
type Client struct {
	replayv1.ReplayClient

	conn   *grpc.ClientConn
	logger zerolog.Logger
}

// New connects to the replay service at addr. Extra dial options are
// appended after the default insecure transport credentials.
func New(addr string, logger zerolog.Logger, opts ...grpc.DialOption) (*Client, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to replay at %s: %w", addr, err)
	}

	return &Client{
		ReplayClient: replayv1.NewReplayClient(conn),
		conn:         conn,
		logger:       logger.With().Str("replay_addr", addr).Logger(),
	}, nil
}

// Writer returns a batching writer that stores through c.
func (c *Client) Writer(cfg WriterConfig) (*Writer, error) {
	return NewWriter(c.ReplayClient, cfg, c.logger)
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
