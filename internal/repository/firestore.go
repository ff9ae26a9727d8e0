package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mentalgoals/pkg/logger"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type FirestoreConfig struct {
	ProjectID       string `json:"projectId"`
	CredentialsFile string `json:"credentialsFile"`
	Collection      string `json:"collection"`
}

// FirestoreStore keeps each record as a document with a single string
// "value" field.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(ctx context.Context, cfg FirestoreConfig) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "documents"
	}

	logger.Logger().Info("Connected to firestore successfully",
		zap.String("project", cfg.ProjectID),
		zap.String("collection", collection))

	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	snap, err := s.client.Collection(s.collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	raw, err := snap.DataAt("value")
	if err != nil {
		return nil, false, fmt.Errorf("document %s has no value: %w", key, err)
	}
	value, ok := raw.(string)
	if !ok {
		return nil, false, fmt.Errorf("document %s value is %T, want string", key, raw)
	}
	return []byte(value), true, nil
}

func (s *FirestoreStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.client.Collection(s.collection).Doc(key).Set(ctx, map[string]interface{}{
		"value":     string(value),
		"updatedAt": firestore.ServerTimestamp,
	})
	return err
}

func (s *FirestoreStore) Remove(ctx context.Context, key string) error {
	_, err := s.client.Collection(s.collection).Doc(key).Delete(ctx)
	return err
}

func (s *FirestoreStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list firestore documents: %w", err)
		}
		if strings.HasPrefix(snap.Ref.ID, prefix) {
			keys = append(keys, snap.Ref.ID)
		}
	}
	return keys, nil
}
