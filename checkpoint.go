package sensorpipeline

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// PostgresCheckpoint records, per shard, the last Kinesis sequence number the
// consumer has handled.
type PostgresCheckpoint struct {
	DB           *sql.DB
	ConsumerName string
}

func NewPostgresCheckpoint(connectionString string, consumerName string) (*PostgresCheckpoint, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}

	return &PostgresCheckpoint{
		DB:           db,
		ConsumerName: consumerName,
	}, nil
}

// SaveCheckpoint stores sequenceNumber for shardID unless a later one is
// already stored.
func (checkpoint *PostgresCheckpoint) SaveCheckpoint(ctx context.Context, shardID string, sequenceNumber string, timestamp int64) error {
	if err := checkpoint.ensureSchema(ctx); err != nil {
		return err
	}

	tx, err := checkpoint.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, upsert, checkpoint.ConsumerName, shardID, sequenceNumber, timestamp); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Checkpoint returns the stored sequence number for shardID, or "" if none.
func (checkpoint *PostgresCheckpoint) Checkpoint(ctx context.Context, shardID string) (string, error) {
	if err := checkpoint.ensureSchema(ctx); err != nil {
		return "", err
	}

	var sequenceNumber string
	err := checkpoint.DB.QueryRowContext(ctx, selectCheckpoint, checkpoint.ConsumerName, shardID).Scan(&sequenceNumber)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return sequenceNumber, err
}

func (checkpoint *PostgresCheckpoint) ensureSchema(ctx context.Context) error {
	_, err := checkpoint.DB.ExecContext(ctx, schema)
	return err
}

func (checkpoint *PostgresCheckpoint) Close() error {
	return checkpoint.DB.Close()
}

func getTimestamp() int64 {
	return time.Now().UnixMilli()
}

const schema = `
	CREATE TABLE IF NOT EXISTS checkpoints
	(
		name            varchar(100),
		shard           varchar(100),
		sequence_number numeric(60),
		timestamp       bigint,
		UNIQUE (name, shard)
	);
`

const upsert = `
	INSERT INTO checkpoints (name, shard, sequence_number, timestamp)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT(name, shard)
	DO
	  UPDATE SET
		sequence_number = EXCLUDED.sequence_number,
		timestamp = EXCLUDED.timestamp
	  WHERE checkpoints.sequence_number < EXCLUDED.sequence_number
`

const selectCheckpoint = `
	SELECT sequence_number::text FROM checkpoints WHERE name = $1 AND shard = $2
`
