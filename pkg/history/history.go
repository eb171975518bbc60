// Package history keeps a local record of past build runs: what was built,
// how long each stage took and the captured build output. Records live in a
// small bbolt database under the XDG state directory.
package history

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/adrg/xdg"
	"github.com/aidarkhanov/nanoid"
	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
	bolt "go.etcd.io/bbolt"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/pipeline"
)

// Record is the persisted form of one run.
type Record struct {
	ID       string
	Profile  string
	Archive  string
	Started  time.Time
	Finished time.Time
	Success  bool
	// FailedStage is empty on success.
	FailedStage string
	Stages      []pipeline.StageResult
}

var (
	runsBucket = []byte("runs")
	logsBucket = []byte("logs")
)

// ErrNotFound is returned when no record exists for a given id.
var ErrNotFound = eris.New("no such run")

// DB wraps the history database.
type DB struct {
	db *bolt.DB
}

// DefaultPath returns the database location used when the config doesn't
// override it.
func DefaultPath() (string, error) {
	path, err := xdg.StateFile("kbuild/history.db")
	if err != nil {
		return "", eris.Wrap(err, "failed to resolve the state directory")
	}
	return path, nil
}

// Open opens or creates the history database at the given path.
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{runsBucket, logsBucket} {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "failed to prepare %s", path)
	}

	return &DB{db: db}, nil
}

func (h *DB) Close() error {
	return h.db.Close()
}

// Record stores a finished run and its captured output, assigns the record a
// fresh id and returns it.
func (h *DB) Record(rec Record, output []byte) (string, error) {
	rec.ID = nanoid.New()

	data, err := json.Marshal(&rec)
	if err != nil {
		return "", eris.Wrap(err, "failed to encode run record")
	}

	compressed := bytes.Buffer{}
	writer := brotli.NewWriterLevel(&compressed, brotli.BestCompression)
	_, err = writer.Write(output)
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		return "", eris.Wrap(err, "failed to compress run output")
	}

	err = h.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(runsBucket).Put([]byte(rec.ID), data)
		if err != nil {
			return err
		}

		return tx.Bucket(logsBucket).Put([]byte(rec.ID), compressed.Bytes())
	})
	if err != nil {
		return "", eris.Wrap(err, "failed to store run record")
	}

	return rec.ID, nil
}

// Recent returns up to n records, newest first.
func (h *DB) Recent(n int) ([]Record, error) {
	records := []Record{}
	err := h.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(key, value []byte) error {
			var rec Record
			err := json.Unmarshal(value, &rec)
			if err != nil {
				return eris.Wrapf(err, "failed to decode run %s", key)
			}

			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(a, b int) bool {
		return records[a].Started.After(records[b].Started)
	})

	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records, nil
}

// Log returns the decompressed captured output of the given run.
func (h *DB) Log(id string) ([]byte, error) {
	var compressed []byte
	err := h.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(logsBucket).Get([]byte(id))
		if value == nil {
			return eris.Wrapf(ErrNotFound, "run %s", id)
		}

		compressed = append([]byte{}, value...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	output, err := io.ReadAll(brotli.NewReader(bytes.NewReader(compressed)))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to decompress output of run %s", id)
	}
	return output, nil
}
