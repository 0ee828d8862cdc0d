// Package mongodb stores unit documents, one MongoDB document per group tree.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ohowland/cgc_ucblock/internal/pkg/config"
	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Load for an unknown document name.
var ErrNotFound = errors.New("document not found")

type Store struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
	log     *zap.SugaredLogger
}

// document is the stored form of a group tree.
type document struct {
	Name  string       `bson:"_id"`
	Saved time.Time    `bson:"saved"`
	Group *group.Group `bson:"group"`
}

// Connect opens a client on cfg.URI.
func Connect(ctx context.Context, cfg config.MongoDB) (*Store, error) {
	client, err := mongo.NewClient(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Connect(cctx); err != nil {
		return nil, err
	}
	s := &Store{
		client:  client,
		coll:    client.Database(cfg.Database).Collection(cfg.Collection),
		timeout: cfg.Timeout,
		log:     log.Named("Mongo").With("database", cfg.Database, "collection", cfg.Collection),
	}
	s.log.Infow("[Mongo] connected")
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Save replaces, or inserts, the document called name.
func (s *Store) Save(ctx context.Context, name string, g *group.Group) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	doc := document{Name: name, Saved: time.Now().UTC(), Group: g}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb: save %s: %w", name, err)
	}
	s.log.Debugw("[Mongo] document saved", "name", name)
	return nil
}

// Load reads the document called name.
func (s *Store) Load(ctx context.Context, name string) (*group.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := s.coll.FindOne(ctx, bson.M{"_id": name}).DecodeBytes()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mongodb: %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb: load %s: %w", name, err)
	}
	return decode(raw)
}

func decode(raw bson.Raw) (*group.Group, error) {
	doc := document{}
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Group == nil {
		return nil, fmt.Errorf("mongodb: %s: empty document", doc.Name)
	}
	doc.Group.Normalize()
	return doc.Group, nil
}
