package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

// --- SQLite Dataset ---

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS dataset_columns (
	position INTEGER PRIMARY KEY,
	name     TEXT NOT NULL UNIQUE,
	unit     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS dataset_records (
	position      INTEGER PRIMARY KEY,
	product_name  TEXT NOT NULL UNIQUE,
	source_url    TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	portion_grams REAL NOT NULL DEFAULT 0,
	nutrients     TEXT NOT NULL
);
`

// SQLiteBackend keeps the dataset in a SQLite database. Nutrient values are
// stored as a JSON object per record so the schema can grow without
// migrations.
type SQLiteBackend struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteBackend opens (or creates) the database at path.
func NewSQLiteBackend(path string, logger *slog.Logger) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite exec %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteMigration); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}

	return &SQLiteBackend{
		db:     db,
		path:   path,
		logger: logger.With("component", "sqlite_storage"),
	}, nil
}

func (b *SQLiteBackend) Name() string { return "sqlite" }

func (b *SQLiteBackend) Load(ctx context.Context) (*Dataset, error) {
	ds := &Dataset{}

	cols, err := b.db.QueryContext(ctx, `SELECT name, unit FROM dataset_columns ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query columns: %w", err)
	}
	defer cols.Close()
	for cols.Next() {
		var c types.Column
		var unit string
		if err := cols.Scan(&c.Name, &unit); err != nil {
			return nil, fmt.Errorf("sqlite scan column: %w", err)
		}
		c.Unit = types.Unit(unit)
		ds.Schema.Columns = append(ds.Schema.Columns, c)
	}
	if err := cols.Err(); err != nil {
		return nil, fmt.Errorf("sqlite columns: %w", err)
	}

	rows, err := b.db.QueryContext(ctx, `
		SELECT product_name, source_url, category, portion_grams, nutrients
		FROM dataset_records ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rec := types.NewRecord(ds.Schema, "", "", "")
		var nutrients string
		if err := rows.Scan(&rec.ProductName, &rec.SourceURL, &rec.Category, &rec.PortionGrams, &nutrients); err != nil {
			return nil, fmt.Errorf("sqlite scan record: %w", err)
		}
		values := make(map[string]float64)
		if err := json.Unmarshal([]byte(nutrients), &values); err != nil {
			return nil, fmt.Errorf("sqlite decode nutrients of %q: %w", rec.ProductName, err)
		}
		for k, v := range values {
			rec.Set(k, v)
		}
		ds.Records = append(ds.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite records: %w", err)
	}
	return ds, nil
}

// Save replaces both tables inside one transaction.
func (b *SQLiteBackend) Save(ctx context.Context, ds *Dataset) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{`DELETE FROM dataset_columns`, `DELETE FROM dataset_records`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite clear: %w", err)
		}
	}

	for i, c := range ds.Schema.Columns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dataset_columns (position, name, unit) VALUES (?, ?, ?)`,
			i, c.Name, string(c.Unit),
		); err != nil {
			return fmt.Errorf("sqlite insert column %s: %w", c.Name, err)
		}
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO dataset_records (position, product_name, source_url, category, portion_grams, nutrients)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer insert.Close()

	for i, rec := range ds.Records {
		nutrients, err := json.Marshal(rec.Nutrients)
		if err != nil {
			return fmt.Errorf("sqlite encode nutrients of %q: %w", rec.ProductName, err)
		}
		if _, err := insert.ExecContext(ctx,
			i, rec.ProductName, rec.SourceURL, rec.Category, rec.PortionGrams, string(nutrients),
		); err != nil {
			return fmt.Errorf("sqlite insert %q: %w", rec.ProductName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	b.logger.Debug("dataset saved", "path", b.path, "records", len(ds.Records))
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// --- MongoDB Dataset ---

// mongoRecord is the document shape of one dataset record.
type mongoRecord struct {
	Position     int                `bson:"position"`
	ProductName  string             `bson:"product_name"`
	SourceURL    string             `bson:"source_url"`
	Category     string             `bson:"category"`
	PortionGrams float64            `bson:"portion_grams"`
	Nutrients    map[string]float64 `bson:"nutrients"`
}

// mongoSchema is the single document holding the column order.
type mongoSchema struct {
	ID      string         `bson:"_id"`
	Columns []types.Column `bson:"columns"`
}

const mongoSchemaID = "schema"

// MongoBackend keeps the dataset in a MongoDB collection, with the column
// order in a companion "<collection>_schema" collection. Saves are written to
// "<collection>_staging" and swapped in with renameCollection.
type MongoBackend struct {
	client     *mongo.Client
	db         *mongo.Database
	records    *mongo.Collection
	schema     *mongo.Collection
	staging    *mongo.Collection
	logger     *slog.Logger
	opTimeout  time.Duration
	collection string
}

// NewMongoBackend connects to uri and verifies the connection.
func NewMongoBackend(uri, database, collection string, logger *slog.Logger) (*MongoBackend, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	db := client.Database(database)
	return &MongoBackend{
		client:     client,
		db:         db,
		records:    db.Collection(collection),
		schema:     db.Collection(collection + "_schema"),
		staging:    db.Collection(collection + "_staging"),
		logger:     logger.With("component", "mongo_storage"),
		opTimeout:  30 * time.Second,
		collection: collection,
	}, nil
}

func (b *MongoBackend) Name() string { return "mongodb" }

func (b *MongoBackend) Load(ctx context.Context) (*Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opTimeout)
	defer cancel()

	ds := &Dataset{}

	var sch mongoSchema
	err := b.schema.FindOne(ctx, bson.M{"_id": mongoSchemaID}).Decode(&sch)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
	case err != nil:
		return nil, fmt.Errorf("mongodb load schema: %w", err)
	default:
		ds.Schema.Columns = sch.Columns
	}

	cur, err := b.records.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc mongoRecord
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb decode: %w", err)
		}
		rec := types.NewRecord(ds.Schema, doc.ProductName, doc.SourceURL, doc.Category)
		rec.PortionGrams = doc.PortionGrams
		for k, v := range doc.Nutrients {
			rec.Set(k, v)
		}
		ds.Records = append(ds.Records, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongodb cursor: %w", err)
	}
	return ds, nil
}

// Save replaces the dataset. The records collection is only touched by the
// final rename, so a failure at any step leaves the last saved dataset in
// place. The schema is written first: it only grows, and older records load
// under a wider schema with the new columns at 0.
func (b *MongoBackend) Save(ctx context.Context, ds *Dataset) error {
	ctx, cancel := context.WithTimeout(ctx, b.opTimeout)
	defer cancel()

	_, err := b.schema.ReplaceOne(ctx,
		bson.M{"_id": mongoSchemaID},
		mongoSchema{ID: mongoSchemaID, Columns: ds.Schema.Columns},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongodb save schema: %w", err)
	}

	if err := b.writeStaging(ctx, ds); err != nil {
		return err
	}
	if err := b.swap(ctx); err != nil {
		return err
	}

	b.logger.Debug("dataset saved", "collection", b.collection, "records", len(ds.Records))
	return nil
}

// writeStaging rebuilds the staging collection from ds.
func (b *MongoBackend) writeStaging(ctx context.Context, ds *Dataset) error {
	if err := b.staging.Drop(ctx); err != nil {
		return fmt.Errorf("mongodb clear staging: %w", err)
	}
	if len(ds.Records) == 0 {
		if err := b.db.CreateCollection(ctx, b.staging.Name()); err != nil {
			return fmt.Errorf("mongodb create staging: %w", err)
		}
		return nil
	}

	docs := make([]any, len(ds.Records))
	for i, rec := range ds.Records {
		docs[i] = mongoRecord{
			Position:     i,
			ProductName:  rec.ProductName,
			SourceURL:    rec.SourceURL,
			Category:     rec.Category,
			PortionGrams: rec.PortionGrams,
			Nutrients:    rec.Nutrients,
		}
	}
	if _, err := b.staging.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongodb insert staging: %w", err)
	}
	return nil
}

// swap atomically replaces the records collection with the staging one.
func (b *MongoBackend) swap(ctx context.Context) error {
	cmd := renameCommand(b.db.Name(), b.staging.Name(), b.records.Name())
	if err := b.client.Database("admin").RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("mongodb swap staging: %w", err)
	}
	return nil
}

func renameCommand(database, from, to string) bson.D {
	return bson.D{
		{Key: "renameCollection", Value: database + "." + from},
		{Key: "to", Value: database + "." + to},
		{Key: "dropTarget", Value: true},
	}
}

func (b *MongoBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.client.Disconnect(ctx)
}
