package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key layout:
//
//	meta_<id>               metadata JSON
//	data_<id>               artifact bytes
//	session_<sid>_<id>      empty marker, indexes artifacts by session
const (
	metaPrefix    = "meta_"
	dataPrefix    = "data_"
	sessionPrefix = "session_"
)

// LevelDBBlobStore persists artifacts in a LevelDB database on disk, so
// share handles survive restarts.
type LevelDBBlobStore struct {
	db *leveldb.DB
}

// OpenLevelDB opens (creating if needed) the database at path.
func OpenLevelDB(path string) (*LevelDBBlobStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDBBlobStore{db: db}, nil
}

func sessionKey(sessionID, id string) []byte {
	return []byte(sessionPrefix + sessionID + "_" + id)
}

func (s *LevelDBBlobStore) Put(_ context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(metaPrefix+meta.ID), raw)
	batch.Put([]byte(dataPrefix+meta.ID), data)
	if meta.SessionID != "" {
		batch.Put(sessionKey(meta.SessionID, meta.ID), nil)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	return &meta, nil
}

func (s *LevelDBBlobStore) Get(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	meta, err := s.GetMetadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.db.Get([]byte(dataPrefix+id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("read artifact: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), meta, nil
}

func (s *LevelDBBlobStore) GetMetadata(_ context.Context, id string) (*BlobMetadata, error) {
	raw, err := s.db.Get([]byte(metaPrefix+id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta BlobMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &meta, nil
}

func (s *LevelDBBlobStore) ListBySession(ctx context.Context, sessionID string) ([]*BlobMetadata, error) {
	prefix := []byte(sessionPrefix + sessionID + "_")
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	items := []*BlobMetadata{}
	for iter.Next() {
		id := string(iter.Key()[len(prefix):])
		meta, err := s.GetMetadata(ctx, id)
		if errors.Is(err, ErrBlobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, meta)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate session index: %w", err)
	}
	sortByCreated(items)
	return items, nil
}

func (s *LevelDBBlobStore) Delete(ctx context.Context, id string) error {
	meta, err := s.GetMetadata(ctx, id)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete([]byte(metaPrefix + id))
	batch.Delete([]byte(dataPrefix + id))
	if meta.SessionID != "" {
		batch.Delete(sessionKey(meta.SessionID, id))
	}
	return s.db.Write(batch, nil)
}

func (s *LevelDBBlobStore) Close() error {
	return s.db.Close()
}
