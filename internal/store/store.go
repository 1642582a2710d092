// Package store persists DatabaseEntry records and search-pagination cursor
// state to a local bitcask key/value store, adapted from the teacher's
// internal/database package: same gzip-compressed value encoding, same
// mutex-guarded wrapper, same page-state cache, repurposed for comics
// instead of model files.
package store

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"git.mills.io/prologic/bitcask"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"

	"wnacg-downloader/internal/apperrors"
	"wnacg-downloader/internal/models"
)

var gzipMagicBytes = []byte{0x1f, 0x8b}

const entryKeyPrefix = "comic_"

func entryKey(comicID int64) []byte {
	return []byte(entryKeyPrefix + strconv.FormatInt(comicID, 10))
}

// DB wraps a bitcask instance with gzip value compression and a read/write
// mutex, same as the teacher's internal/database.DB.
type DB struct {
	db *bitcask.Bitcask
	sync.RWMutex
}

// Open opens (creating if needed) the bitcask store at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: creating store directory %s: %s", apperrors.ErrIO, dir, err)
		}
	}
	db, err := bitcask.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening store at %s: %s", apperrors.ErrIO, path, err)
	}
	log.Infof("store opened at %s", path)
	return &DB{db: db}, nil
}

// Close closes the underlying bitcask database.
func (d *DB) Close() error {
	d.Lock()
	defer d.Unlock()
	return d.db.Close()
}

func (d *DB) get(key []byte) ([]byte, error) {
	d.RLock()
	value, err := d.db.Get(key)
	d.RUnlock()
	if err != nil {
		if errors.Is(err, bitcask.ErrKeyNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting key %s: %s", apperrors.ErrIO, key, err)
	}
	return decompressIfGzipped(value)
}

func (d *DB) put(key, value []byte) error {
	compressed, err := compressGzip(value)
	if err != nil {
		return fmt.Errorf("%w: compressing value for key %s: %s", apperrors.ErrIO, key, err)
	}
	d.Lock()
	err = d.db.Put(key, compressed)
	d.Unlock()
	if err != nil {
		return fmt.Errorf("%w: putting key %s: %s", apperrors.ErrIO, key, err)
	}
	return nil
}

func (d *DB) delete(key []byte) error {
	d.Lock()
	err := d.db.Delete(key)
	d.Unlock()
	if err != nil {
		if errors.Is(err, bitcask.ErrKeyNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("%w: deleting key %s: %s", apperrors.ErrIO, key, err)
	}
	return nil
}

// PutEntry persists entry, keyed by its comic id.
func (d *DB) PutEntry(entry models.DatabaseEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: marshalling entry for comic %d: %s", apperrors.ErrIO, entry.ComicID, err)
	}
	return d.put(entryKey(entry.ComicID), data)
}

// GetEntry retrieves the stored entry for a comic id.
func (d *DB) GetEntry(comicID int64) (models.DatabaseEntry, error) {
	data, err := d.get(entryKey(comicID))
	if err != nil {
		return models.DatabaseEntry{}, err
	}
	var entry models.DatabaseEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return models.DatabaseEntry{}, fmt.Errorf("%w: unmarshalling entry for comic %d: %s", apperrors.ErrIO, comicID, err)
	}
	return entry, nil
}

// DeleteEntry removes the stored entry for a comic id. Deleting an entry
// that does not exist is not an error.
func (d *DB) DeleteEntry(comicID int64) error {
	if err := d.delete(entryKey(comicID)); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return nil
}

// ListEntries returns every stored entry, used by the `list` command.
func (d *DB) ListEntries() ([]models.DatabaseEntry, error) {
	d.RLock()
	defer d.RUnlock()

	var entries []models.DatabaseEntry
	err := d.db.Fold(func(key []byte) error {
		if !bytes.HasPrefix(key, []byte(entryKeyPrefix)) {
			return nil
		}
		raw, err := d.db.Get(key)
		if err != nil {
			log.WithError(err).Warnf("store: error reading key %s during list", key)
			return nil
		}
		data, err := decompressIfGzipped(raw)
		if err != nil {
			log.WithError(err).Warnf("store: error decompressing key %s during list", key)
			return nil
		}
		var entry models.DatabaseEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			log.WithError(err).Warnf("store: error unmarshalling key %s during list", key)
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	return entries, err
}

// GetPageState retrieves the saved page number for a cached query. Returns
// 1 if no state has been saved. The search and favorites commands do not
// read or write this state; they take the page from their --page flag.
func (d *DB) GetPageState(queryHash string) (int64, error) {
	data, err := d.get([]byte("page_" + queryHash))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 1, nil
		}
		return 0, err
	}
	page, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing saved page %q: %s", apperrors.ErrIO, data, err)
	}
	return page, nil
}

// SetPageState saves the current page number for a cached query.
func (d *DB) SetPageState(queryHash string, page int64) error {
	return d.put([]byte("page_"+queryHash), []byte(strconv.FormatInt(page, 10)))
}

// ManifestHash computes a blake3 digest over a completed comic's file list:
// each entry's name and byte size, newline-joined, in the order given.
// Callers pass filenames already sorted so the hash is stable regardless of
// filesystem iteration order. This is a post-hoc integrity record, not a
// resume gate: downloads remain all-or-nothing per SPEC_FULL.md §9.
func ManifestHash(names []string, sizes []int64) string {
	h := blake3.New()
	for i, name := range names {
		fmt.Fprintf(h, "%s\t%d\n", name, sizes[i])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func decompressIfGzipped(value []byte) ([]byte, error) {
	if !bytes.HasPrefix(value, gzipMagicBytes) {
		return value, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(value))
	if err != nil {
		log.WithError(err).Warn("store: error creating gzip reader, returning raw value")
		return value, nil
	}
	defer r.Close()
	decompressed, err := io.ReadAll(r)
	if err != nil {
		log.WithError(err).Warn("store: error decompressing value, returning raw value")
		return value, nil
	}
	return decompressed, nil
}

func compressGzip(value []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(value); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
