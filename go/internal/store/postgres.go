package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const pgNotifyChannel = "typebattle_docs"

// PostgresStore implements Store over a single JSONB documents table. Each
// top-level document is one row; change notification rides LISTEN/NOTIFY,
// with the mutated document key as the payload. Like the other backends,
// writes are last-write-wins with no conditional semantics.
type PostgresStore struct {
	pool *pgxpool.Pool

	mu     sync.Mutex
	subs   map[*pgSub]struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

type pgSub struct {
	path string
	key  string
	rel  []string
	fn   SubscribeFunc
}

// NewPostgresStore connects, ensures the schema, and starts the notification
// listener.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS documents (
			key TEXT PRIMARY KEY,
			doc JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &PostgresStore{
		pool:   pool,
		subs:   make(map[*pgSub]struct{}),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.listen(listenCtx)
	return s, nil
}

// Close stops the listener and releases the pool.
func (s *PostgresStore) Close() {
	s.cancel()
	<-s.done
	s.pool.Close()
}

// pgDocKey maps a path to its row key plus the segments inside the document.
func pgDocKey(path string) (key string, rel []string, err error) {
	segs := Split(path)
	if len(segs) < 2 {
		return "", nil, fmt.Errorf("path %q does not address a document", path)
	}
	return segs[0] + "/" + segs[1], segs[2:], nil
}

func (s *PostgresStore) Read(ctx context.Context, path string) (json.RawMessage, error) {
	if segs := Split(path); len(segs) == 1 {
		return s.readCollection(ctx, segs[0])
	}

	key, rel, err := pgDocKey(path)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = s.pool.QueryRow(ctx, `SELECT doc FROM documents WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document %s: %w", key, err)
	}

	if len(rel) == 0 {
		return raw, nil
	}
	return project(raw, rel)
}

// readCollection assembles every document of one top-level collection into
// a single object keyed by id, so a collection path reads like a subtree.
func (s *PostgresStore) readCollection(ctx context.Context, collection string) (json.RawMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, doc FROM documents WHERE key LIKE $1`, collection+"/%")
	if err != nil {
		return nil, fmt.Errorf("select collection %s: %w", collection, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key string
		var doc []byte
		if err := rows.Scan(&key, &doc); err != nil {
			return nil, fmt.Errorf("scan collection row: %w", err)
		}
		out[strings.TrimPrefix(key, collection+"/")] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collection %s: %w", collection, err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return json.Marshal(out)
}

func (s *PostgresStore) Write(ctx context.Context, path string, value any) error {
	key, rel, err := pgDocKey(path)
	if err != nil {
		return err
	}

	if len(rel) == 0 {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		return s.upsert(ctx, key, data)
	}

	return s.modify(ctx, key, func(doc map[string]any) error {
		normalized, err := normalize(value)
		if err != nil {
			return err
		}
		setAt(doc, rel, normalized)
		return nil
	})
}

func (s *PostgresStore) Update(ctx context.Context, path string, fields map[string]any) error {
	key, rel, err := pgDocKey(path)
	if err != nil {
		return err
	}

	return s.modify(ctx, key, func(doc map[string]any) error {
		for k, v := range fields {
			normalized, err := normalize(v)
			if err != nil {
				return fmt.Errorf("field %s: %w", k, err)
			}
			setAt(doc, append(rel, k), normalized)
		}
		return nil
	})
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	key, rel, err := pgDocKey(path)
	if err != nil {
		return err
	}

	if len(rel) == 0 {
		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM documents WHERE key = $1`, key)
		batch.Queue(`SELECT pg_notify($1, $2)`, pgNotifyChannel, key)
		if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("delete document %s: %w", key, err)
		}
		return nil
	}

	// A sub-path delete on an absent document must stay a no-op, not
	// resurrect the document as an empty object.
	var raw []byte
	err = s.pool.QueryRow(ctx, `SELECT doc FROM documents WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select document %s: %w", key, err)
	}

	doc := make(map[string]any)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode document %s: %w", key, err)
	}
	removeAt(doc, rel)

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", key, err)
	}
	return s.upsert(ctx, key, data)
}

func (s *PostgresStore) Subscribe(ctx context.Context, path string, fn SubscribeFunc) (UnsubscribeFunc, error) {
	key, rel, err := pgDocKey(path)
	if err != nil {
		return nil, err
	}

	sub := &pgSub{path: path, key: key, rel: rel, fn: fn}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	// Initial snapshot, before any notification arrives.
	fn(s.snapshot(ctx, sub))

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
		})
	}, nil
}

func (s *PostgresStore) upsert(ctx context.Context, key string, data []byte) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO documents (key, doc) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		key, data)
	batch.Queue(`SELECT pg_notify($1, $2)`, pgNotifyChannel, key)
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert document %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) modify(ctx context.Context, key string, mutate func(map[string]any) error) error {
	doc := make(map[string]any)
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM documents WHERE key = $1`, key).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Start from an empty document.
	case err != nil:
		return fmt.Errorf("select document %s: %w", key, err)
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode document %s: %w", key, err)
		}
	}

	if err := mutate(doc); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", key, err)
	}
	return s.upsert(ctx, key, data)
}

func (s *PostgresStore) snapshot(ctx context.Context, sub *pgSub) Snapshot {
	data, err := s.Read(ctx, sub.path)
	if errors.Is(err, ErrNotFound) {
		return Snapshot{Path: sub.path}
	}
	if err != nil {
		log.Error().Err(err).Str("path", sub.path).Msg("reading snapshot for subscriber")
		return Snapshot{Path: sub.path}
	}
	return Snapshot{Path: sub.path, Data: data, Exists: true}
}

// listen holds a dedicated connection on LISTEN and fans notifications out
// to matching subscribers. Reconnects with backoff on connection loss.
func (s *PostgresStore) listen(ctx context.Context) {
	defer close(s.done)

	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.listenOnce(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("notification listener failed; reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (s *PostgresStore) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgNotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.dispatch(ctx, notification.Payload)
	}
}

func (s *PostgresStore) dispatch(ctx context.Context, key string) {
	s.mu.Lock()
	matched := make([]*pgSub, 0, len(s.subs))
	for sub := range s.subs {
		if sub.key == key {
			matched = append(matched, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range matched {
		sub.fn(s.snapshot(ctx, sub))
	}
}
