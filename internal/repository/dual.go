package repository

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"mentalgoals/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var StoreFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "store_failures_total",
		Help: "Total number of failed storage operations by backend",
	},
	[]string{"backend", "op"},
)

// Connector opens one backend. It is called again on every operation until
// the DualStore becomes ready.
type Connector func(ctx context.Context) (KeyValueStore, error)

// DualStore writes every record to a document store and a key/value store.
// Reads return the newest copy and prefer the document store on a tie. A
// write fails only when no backend accepted it.
type DualStore struct {
	mu              sync.Mutex
	connectDocument Connector
	connectKV       Connector
	document        KeyValueStore
	kv              KeyValueStore
	ready           bool
	version         int64
}

type backend struct {
	name  string
	store KeyValueStore
}

// record is the stored form of every value. Version orders copies of the
// same key across backends; values written without an envelope have
// version 0.
type record struct {
	Version int64  `json:"version"`
	Value   []byte `json:"value"`
}

func encodeRecord(version int64, value []byte) ([]byte, error) {
	return json.Marshal(record{Version: version, Value: value})
}

func decodeRecord(raw []byte) record {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.Version == 0 {
		return record{Value: raw}
	}
	return rec
}

func NewDualStore(document, kv Connector) *DualStore {
	return &DualStore{
		connectDocument: document,
		connectKV:       kv,
	}
}

func (s *DualStore) init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	log := logger.Logger()

	if s.document == nil && s.connectDocument != nil {
		st, err := s.connectDocument(ctx)
		if err != nil {
			log.Warn("document store unavailable, falling back to key/value storage", zap.Error(err))
			StoreFailures.WithLabelValues("document", "init").Inc()
		} else {
			s.document = st
		}
	}

	if s.kv == nil && s.connectKV != nil {
		st, err := s.connectKV(ctx)
		if err != nil {
			log.Error("key/value store unavailable", zap.Error(err))
			StoreFailures.WithLabelValues("kv", "init").Inc()
		} else {
			s.kv = st
		}
	}

	if s.document == nil && s.kv == nil {
		return ErrNotReady
	}

	s.ready = true
	return nil
}

func (s *DualStore) backends(ctx context.Context) (document, kv KeyValueStore, err error) {
	if err := s.init(ctx); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document, s.kv, nil
}

// Get returns the newest copy of key held by any backend. A backend error
// is reported whenever no backend holds the key.
func (s *DualStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	document, kv, err := s.backends(ctx)
	if err != nil {
		return nil, false, err
	}

	var (
		newest *record
		errs   []error
	)
	for _, b := range []backend{{"document", document}, {"kv", kv}} {
		if b.store == nil {
			continue
		}
		raw, found, err := b.store.Get(ctx, key)
		if err != nil {
			errs = append(errs, s.failed(b.name, "get", key, err))
			continue
		}
		if !found {
			continue
		}
		rec := decodeRecord(raw)
		if newest == nil || rec.Version > newest.Version {
			newest = &rec
		}
	}

	if newest != nil {
		return newest.Value, true, nil
	}
	if len(errs) > 0 {
		return nil, false, errors.Join(errs...)
	}
	return nil, false, nil
}

// Set stamps value with a new version so a backend that missed this write
// is outranked on the next read.
func (s *DualStore) Set(ctx context.Context, key string, value []byte) error {
	raw, err := encodeRecord(s.nextVersion(), value)
	if err != nil {
		return err
	}
	return s.each(ctx, "set", key, func(st KeyValueStore) error {
		return st.Set(ctx, key, raw)
	})
}

// Remove must reach every ready backend. A copy left behind would be read
// back as the live record.
func (s *DualStore) Remove(ctx context.Context, key string) error {
	document, kv, err := s.backends(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, b := range []backend{{"document", document}, {"kv", kv}} {
		if b.store == nil {
			continue
		}
		if err := b.store.Remove(ctx, key); err != nil {
			errs = append(errs, s.failed(b.name, "remove", key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *DualStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	document, kv, err := s.backends(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var errs []error
	served := false
	for _, b := range []backend{{"document", document}, {"kv", kv}} {
		if b.store == nil {
			continue
		}
		keys, err := b.store.Keys(ctx, prefix)
		if err != nil {
			errs = append(errs, s.failed(b.name, "keys", prefix, err))
			continue
		}
		served = true
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}
	if !served {
		return nil, errors.Join(errs...)
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *DualStore) nextVersion() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := time.Now().UnixNano()
	if v <= s.version {
		v = s.version + 1
	}
	s.version = v
	return v
}

// each runs op against every ready backend and succeeds if any of them did.
func (s *DualStore) each(ctx context.Context, op, key string, fn func(KeyValueStore) error) error {
	document, kv, err := s.backends(ctx)
	if err != nil {
		return err
	}

	var errs []error
	served := false
	for _, b := range []backend{{"document", document}, {"kv", kv}} {
		if b.store == nil {
			continue
		}
		if err := fn(b.store); err != nil {
			errs = append(errs, s.failed(b.name, op, key, err))
			continue
		}
		served = true
	}

	if !served {
		return errors.Join(errs...)
	}
	return nil
}

func (s *DualStore) failed(name, op, key string, err error) error {
	StoreFailures.WithLabelValues(name, op).Inc()
	logger.Logger().Error("storage operation failed",
		zap.String("backend", name),
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err))
	return err
}

func (s *DualStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, st := range []KeyValueStore{s.document, s.kv} {
		if c, ok := st.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
