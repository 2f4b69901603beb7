package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// driver is everything Client needs from the MongoDB driver. Tests swap in a
// stub to exercise connect and shutdown paths without a server.
type driver interface {
	Connect(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error)
	Ping(ctx context.Context, cli *mongo.Client) error
	Disconnect(ctx context.Context, cli *mongo.Client) error
	// ReplicaSetName is empty for a stand-alone server.
	ReplicaSetName(ctx context.Context, cli *mongo.Client) (string, error)
}

// liveDriver talks to a real deployment.
type liveDriver struct{}

var _ driver = liveDriver{}

func (liveDriver) Connect(_ context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return cli, nil
}

func (liveDriver) Ping(ctx context.Context, cli *mongo.Client) error {
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

func (liveDriver) Disconnect(ctx context.Context, cli *mongo.Client) error {
	if err := cli.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	return nil
}

func (liveDriver) ReplicaSetName(ctx context.Context, cli *mongo.Client) (string, error) {
	var hello struct {
		SetName string `bson:"setName"`
	}
	err := cli.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello)
	if err != nil {
		return "", fmt.Errorf("mongo hello: %w", err)
	}
	return hello.SetName, nil
}

// IsReplicaSet reports whether the server named a replica set at connect
// time. Only replica sets support change streams; the topology may change
// later, so callers treat this as a hint.
func (c *Client) IsReplicaSet() bool { return c.replicaSet.Load() }
