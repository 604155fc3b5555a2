package config

import (
	"context"
	"crypto/tls"
	"errors"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var MongoClient *mongo.Client

func mongoOptions(uri string, forceTLS, insecure bool) *options.ClientOptions {
	opts := options.Client().ApplyURI(uri).
		SetAppName("casecoach").
		SetServerSelectionTimeout(20 * time.Second).
		SetConnectTimeout(15 * time.Second).
		SetMaxPoolSize(20).
		SetMinPoolSize(1)

	// Atlas clusters reject some Go 1.24 TLS defaults
	if forceTLS {
		opts = opts.SetTLSConfig(&tls.Config{
			InsecureSkipVerify: insecure,
			MinVersion:         tls.VersionTLS12,
			MaxVersion:         tls.VersionTLS12,
		})
	}
	return opts
}

// InitMongo connects to MONGO_URI and pings it.
func InitMongo() error {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		return errors.New("MONGO_URI environment variable is not set")
	}
	forceTLS := os.Getenv("MONGO_FORCE_TLS_CONFIG") == "true" || os.Getenv("GO_ENV") == "development"
	opts := mongoOptions(uri, forceTLS, os.Getenv("MONGO_INSECURE_TLS") == "true")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}
	MongoClient = client
	return nil
}

// MongoDatabase returns the named database on the shared client.
func MongoDatabase(name string) *mongo.Database {
	if name == "" {
		name = "casecoach"
	}
	return MongoClient.Database(name)
}
