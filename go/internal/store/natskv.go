package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the JetStream-backed store.
type NATSConfig struct {
	URL           string
	Bucket        string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the default JetStream store configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Bucket:        "typebattle",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSStore implements Store over a JetStream KeyValue bucket. Each top-level
// document (e.g. rooms/A1B2C3, users/uid) is one KV entry holding the whole
// JSON document; deeper paths are resolved with read-merge-put. Puts are
// unconditional last-write-wins, matching the coordination model: disjoint
// write regions per client, no locking.
type NATSStore struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// NewNATSStore connects to NATS and opens (or creates) the bucket.
func NewNATSStore(ctx context.Context, cfg NATSConfig) (*NATSStore, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: cfg.Bucket,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open bucket %s: %w", cfg.Bucket, err)
	}

	return &NATSStore{nc: nc, kv: kv}, nil
}

// Close drops the NATS connection.
func (n *NATSStore) Close() {
	n.nc.Close()
}

// docKey splits a path into the KV key of its top-level document and the
// remaining segments inside that document.
func docKey(path string) (key string, rel []string, err error) {
	segs := Split(path)
	if len(segs) < 2 {
		return "", nil, fmt.Errorf("path %q does not address a document", path)
	}
	return segs[0] + "." + segs[1], segs[2:], nil
}

func (n *NATSStore) Read(ctx context.Context, path string) (json.RawMessage, error) {
	if segs := Split(path); len(segs) == 1 {
		return n.readCollection(ctx, segs[0])
	}

	key, rel, err := docKey(path)
	if err != nil {
		return nil, err
	}

	entry, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}

	if len(rel) == 0 {
		return entry.Value(), nil
	}
	return project(entry.Value(), rel)
}

// readCollection assembles every document of one top-level collection into
// a single object keyed by id, so a collection path reads like a subtree.
func (n *NATSStore) readCollection(ctx context.Context, collection string) (json.RawMessage, error) {
	lister, err := n.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	out := make(map[string]json.RawMessage)
	prefix := collection + "."
	for key := range lister.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := n.kv.Get(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("kv get %s: %w", key, err)
		}
		out[strings.TrimPrefix(key, prefix)] = entry.Value()
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return json.Marshal(out)
}

func (n *NATSStore) Write(ctx context.Context, path string, value any) error {
	key, rel, err := docKey(path)
	if err != nil {
		return err
	}

	if len(rel) == 0 {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		if _, err := n.kv.Put(ctx, key, data); err != nil {
			return fmt.Errorf("kv put %s: %w", key, err)
		}
		return nil
	}

	return n.modify(ctx, key, func(doc map[string]any) error {
		normalized, err := normalize(value)
		if err != nil {
			return err
		}
		setAt(doc, rel, normalized)
		return nil
	})
}

func (n *NATSStore) Update(ctx context.Context, path string, fields map[string]any) error {
	key, rel, err := docKey(path)
	if err != nil {
		return err
	}

	return n.modify(ctx, key, func(doc map[string]any) error {
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

func (n *NATSStore) Delete(ctx context.Context, path string) error {
	key, rel, err := docKey(path)
	if err != nil {
		return err
	}

	if len(rel) == 0 {
		if err := n.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("kv delete %s: %w", key, err)
		}
		return nil
	}

	// A sub-path delete on an absent document must stay a no-op, not
	// resurrect the document as an empty object.
	entry, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("kv get %s: %w", key, err)
	}

	doc := make(map[string]any)
	if err := json.Unmarshal(entry.Value(), &doc); err != nil {
		return fmt.Errorf("decode document %s: %w", key, err)
	}
	removeAt(doc, rel)

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", key, err)
	}
	if _, err := n.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

// modify is the read-merge-put cycle for sub-document operations. It is
// deliberately not a compare-and-swap: two clients racing on the same
// document interleave last-write-wins, per the protocol's trust model.
func (n *NATSStore) modify(ctx context.Context, key string, mutate func(map[string]any) error) error {
	doc := make(map[string]any)
	entry, err := n.kv.Get(ctx, key)
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound):
		// Start from an empty document.
	case err != nil:
		return fmt.Errorf("kv get %s: %w", key, err)
	default:
		if err := json.Unmarshal(entry.Value(), &doc); err != nil {
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
	if _, err := n.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

func (n *NATSStore) Subscribe(ctx context.Context, path string, fn SubscribeFunc) (UnsubscribeFunc, error) {
	key, rel, err := docKey(path)
	if err != nil {
		return nil, err
	}

	watcher, err := n.kv.Watch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("kv watch %s: %w", key, err)
	}

	go func() {
		delivered := false
		for entry := range watcher.Updates() {
			if entry == nil {
				// End of initial values. An absent key delivers nothing
				// before this marker, so surface the empty snapshot.
				if !delivered {
					fn(Snapshot{Path: path})
					delivered = true
				}
				continue
			}
			delivered = true
			fn(entrySnapshot(path, rel, entry))
		}
	}()

	return func() {
		if err := watcher.Stop(); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("stopping KV watcher")
		}
	}, nil
}

func entrySnapshot(path string, rel []string, entry jetstream.KeyValueEntry) Snapshot {
	op := entry.Operation()
	if op == jetstream.KeyValueDelete || op == jetstream.KeyValuePurge {
		return Snapshot{Path: path}
	}
	if len(rel) == 0 {
		return Snapshot{Path: path, Data: entry.Value(), Exists: true}
	}
	data, err := project(entry.Value(), rel)
	if err != nil {
		return Snapshot{Path: path}
	}
	return Snapshot{Path: path, Data: data, Exists: true}
}

// project extracts the value at rel inside a raw JSON document.
func project(raw []byte, rel []string) (json.RawMessage, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	v, ok := getAt(doc, rel)
	if !ok {
		return nil, ErrNotFound
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal sub-document %s: %w", strings.Join(rel, "/"), err)
	}
	return data, nil
}
