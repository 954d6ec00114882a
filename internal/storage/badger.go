package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"revolver/internal/model"
)

const (
	runPrefix         = "run/"
	historyPrefix     = "history/"
	diagnosticsPrefix = "diagnostics/"
	populationPrefix  = "population/"
)

// BadgerStore keeps runs in an embedded badger database. An empty path opens
// an in-memory database.
type BadgerStore struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	db *badger.DB
}

func NewBadgerStore(path string, logger *slog.Logger) *BadgerStore {
	return &BadgerStore{path: path, logger: logger}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (s *BadgerStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	var opts badger.Options
	if s.path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(s.path, 0o750); err != nil {
			return fmt.Errorf("create badger directory %s: %w", s.path, err)
		}
		opts = badger.DefaultOptions(s.path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if s.logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: s.logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger database: %w", err)
	}
	s.db = db
	return nil
}

func (s *BadgerStore) SaveRun(_ context.Context, run model.RunRecord) error {
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	return s.put(runPrefix+run.ID, payload)
}

func (s *BadgerStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	payload, ok, err := s.get(runPrefix + id)
	if err != nil || !ok {
		return model.RunRecord{}, false, err
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *BadgerStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var runs []model.RunRecord
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			payload, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			run, err := DecodeRun(payload)
			if err != nil {
				return fmt.Errorf("decode run %s: %w", item.Key(), err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRuns(runs)
	return runs, nil
}

func (s *BadgerStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	payload, err := EncodeFitnessHistory(history)
	if err != nil {
		return err
	}
	return s.put(historyPrefix+runID, payload)
}

func (s *BadgerStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	payload, ok, err := s.get(historyPrefix + runID)
	if err != nil || !ok {
		return nil, false, err
	}
	history, err := DecodeFitnessHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode fitness history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *BadgerStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	payload, err := EncodeGenerationDiagnostics(diagnostics)
	if err != nil {
		return err
	}
	return s.put(diagnosticsPrefix+runID, payload)
}

func (s *BadgerStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	payload, ok, err := s.get(diagnosticsPrefix + runID)
	if err != nil || !ok {
		return nil, false, err
	}
	diagnostics, err := DecodeGenerationDiagnostics(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode generation diagnostics %s: %w", runID, err)
	}
	return diagnostics, true, nil
}

func (s *BadgerStore) SavePopulation(_ context.Context, snapshot model.PopulationSnapshot) error {
	payload, err := EncodePopulation(snapshot)
	if err != nil {
		return err
	}
	return s.put(populationPrefix+snapshot.RunID, payload)
}

func (s *BadgerStore) GetPopulation(_ context.Context, runID string) (model.PopulationSnapshot, bool, error) {
	payload, ok, err := s.get(populationPrefix + runID)
	if err != nil || !ok {
		return model.PopulationSnapshot{}, false, err
	}
	snapshot, err := DecodePopulation(payload)
	if err != nil {
		return model.PopulationSnapshot{}, false, fmt.Errorf("decode population %s: %w", runID, err)
	}
	return snapshot, true, nil
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BadgerStore) getDB() (*badger.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func (s *BadgerStore) put(key string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
}

func (s *BadgerStore) get(key string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}
