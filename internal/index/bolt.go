package index

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketDocs  = []byte("docs")
	bucketTerms = []byte("terms")

	present = []byte{1}
)

// BoltIndexer is an inverted index stored in a bbolt file. Each term
// bucket holds the keys of the documents containing the term.
type BoltIndexer struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the index file at path.
func OpenBolt(path string) (*BoltIndexer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDocs, bucketTerms} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index buckets: %w", err)
	}
	return &BoltIndexer{db: db}, nil
}

// docKey is the list name, a zero byte and the big-endian email id.
func docKey(listName string, emailID int64) []byte {
	key := make([]byte, len(listName)+9)
	copy(key, listName)
	binary.BigEndian.PutUint64(key[len(listName)+1:], uint64(emailID))
	return key
}

func (b *BoltIndexer) Update(_ context.Context, docs []Document) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		for _, d := range docs {
			key := docKey(d.ListName, d.EmailID)
			if err := unindex(tx, key); err != nil {
				return err
			}
			data, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("encoding document %d: %w", d.EmailID, err)
			}
			if err := tx.Bucket(bucketDocs).Put(key, data); err != nil {
				return err
			}
			for _, term := range d.terms() {
				tb, err := tx.Bucket(bucketTerms).CreateBucketIfNotExists([]byte(term))
				if err != nil {
					return err
				}
				if err := tb.Put(key, present); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("indexing %d documents: %w", len(docs), err)
	}
	return nil
}

func (b *BoltIndexer) Remove(_ context.Context, listName string, emailIDs []int64) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		for _, id := range emailIDs {
			if err := unindex(tx, docKey(listName, id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("unindexing %d emails of %s: %w", len(emailIDs), listName, err)
	}
	return nil
}

// unindex drops a stored document and its term entries.
func unindex(tx *bbolt.Tx, key []byte) error {
	docs := tx.Bucket(bucketDocs)
	data := docs.Get(key)
	if data == nil {
		return nil
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	for _, term := range d.terms() {
		tb := tx.Bucket(bucketTerms).Bucket([]byte(term))
		if tb == nil {
			continue
		}
		if err := tb.Delete(key); err != nil {
			return err
		}
	}
	return docs.Delete(key)
}

// Search returns the documents of a list containing every word of query,
// most recent first.
func (b *BoltIndexer) Search(listName, query string) ([]Document, error) {
	words := terms(query)
	if len(words) == 0 {
		return nil, nil
	}

	var results []Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		first := tx.Bucket(bucketTerms).Bucket([]byte(words[0]))
		if first == nil {
			return nil
		}
		prefix := append([]byte(listName), 0)
		c := first.Cursor()
	keys:
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			for _, w := range words[1:] {
				tb := tx.Bucket(bucketTerms).Bucket([]byte(w))
				if tb == nil || tb.Get(k) == nil {
					continue keys
				}
			}
			var d Document
			if err := json.Unmarshal(tx.Bucket(bucketDocs).Get(k), &d); err != nil {
				return fmt.Errorf("decoding document: %w", err)
			}
			results = append(results, d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", listName, err)
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].Date.Equal(results[j].Date) {
			return results[i].Date.After(results[j].Date)
		}
		return results[i].EmailID < results[j].EmailID
	})
	return results, nil
}

func hasPrefix(k, prefix []byte) bool {
	return len(k) >= len(prefix) && string(k[:len(prefix)]) == string(prefix)
}

// Path returns the filesystem path of the index file.
func (b *BoltIndexer) Path() string {
	return b.db.Path()
}

func (b *BoltIndexer) Close() error {
	return b.db.Close()
}
