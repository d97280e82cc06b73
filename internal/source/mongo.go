package source

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/blake2b"

	"salesdash/internal/config"
	apperrors "salesdash/internal/errors"
	"salesdash/internal/infrastructure"
)

// MongoSource reads each table from a collection of the same name.
// Documents are flattened one level: every top-level field except _id
// becomes a column, in first-seen order.
type MongoSource struct {
	client   *mongo.Client
	database string
	tables   map[string]string
	logger   *slog.Logger
}

// OpenMongo connects to MongoDB.
func OpenMongo(ctx context.Context, dsn, database string, tables map[string]string, logger *slog.Logger) (*MongoSource, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, apperrors.NewStorageError("failed to connect to mongo", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperrors.NewStorageError("failed to ping mongo", err)
	}

	return &MongoSource{
		client:   client,
		database: database,
		tables:   tables,
		logger:   infrastructure.WithComponent(logger, "source.mongo"),
	}, nil
}

// Kind implements Source
func (s *MongoSource) Kind() string { return config.SourceMongo }

// Fingerprint hashes a digest of the raw BSON of every document.
func (s *MongoSource) Fingerprint(ctx context.Context) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	_, _ = io.WriteString(h, config.SourceMongo+"\x00"+s.database+"\x00")

	for _, table := range config.RequiredTables {
		coll, err := s.collection(ctx, table)
		if err != nil {
			return "", err
		}
		cursor, err := coll.Find(ctx, bson.D{})
		if err != nil {
			return "", apperrors.NewStorageError(fmt.Sprintf("failed to digest %s", coll.Name()), err)
		}
		d := &tableDigest{}
		for cursor.Next(ctx) {
			d.raw(cursor.Current)
		}
		err = cursor.Err()
		_ = cursor.Close(ctx)
		if err != nil {
			return "", apperrors.NewStorageError(fmt.Sprintf("failed to digest %s", coll.Name()), err)
		}
		d.writeTo(h, table, coll.Name())
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadTable implements Source
func (s *MongoSource) ReadTable(ctx context.Context, table string) (*Records, error) {
	coll, err := s.collection(ctx, table)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to query %s", coll.Name()), err)
	}
	defer cursor.Close(ctx)

	var (
		header []string
		cols   = make(map[string]int)
		docs   []bson.D
	)
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, apperrors.NewStorageError(fmt.Sprintf("failed to decode %s", coll.Name()), err)
		}
		for _, e := range doc {
			if e.Key == "_id" {
				continue
			}
			if _, ok := cols[e.Key]; !ok {
				cols[e.Key] = len(header)
				header = append(header, e.Key)
			}
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read %s", coll.Name()), err)
	}

	records := NewRecords(table, header)
	records.Rows = make([][]string, 0, len(docs))
	for _, doc := range docs {
		row := make([]string, len(header))
		for _, e := range doc {
			if i, ok := cols[e.Key]; ok {
				row[i] = formatValue(e.Value)
			}
		}
		records.Rows = append(records.Rows, row)
	}

	s.logger.DebugContext(ctx, "table read",
		slog.String("table", table),
		slog.String("collection", coll.Name()),
		slog.Int("rows", len(records.Rows)))

	return records, nil
}

// Close implements Source
func (s *MongoSource) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *MongoSource) collection(ctx context.Context, table string) (*mongo.Collection, error) {
	name, ok := s.tables[table]
	if !ok {
		return nil, apperrors.NewConfigError(fmt.Sprintf("no collection configured for %q", table), nil)
	}

	db := s.client.Database(s.database)
	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to look up collection %s", name), err)
	}
	if len(names) == 0 {
		return nil, apperrors.NewMissingInputError(table, "mongo collection "+s.database+"."+name, nil)
	}
	return db.Collection(name), nil
}

// formatValue renders a BSON value the way it would appear in the CSV export.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return ""
	case string:
		return x
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case primitive.DateTime:
		return x.Time().UTC().Format("2006-01-02 15:04:05")
	case time.Time:
		return x.UTC().Format("2006-01-02 15:04:05")
	case primitive.Decimal128:
		return x.String()
	case primitive.ObjectID:
		return x.Hex()
	default:
		return fmt.Sprint(x)
	}
}
