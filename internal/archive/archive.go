// Package archive keeps a copy of every raw webhook delivery in object
// storage so payloads can be replayed or audited later.
package archive

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/google/uuid"
)

const (
	contentTypeJSON = "application/json"
	keyPrefix       = "whatsapp"
)

// ObjectStore is the subset of object storage the archiver needs.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key, contentType string, data []byte) error
}

// Archiver stores raw webhook payloads under date-partitioned keys.
type Archiver struct {
	store  ObjectStore
	bucket string
}

func New(store ObjectStore, bucket string) *Archiver {
	return &Archiver{store: store, bucket: bucket}
}

// Archive uploads raw and returns the object key.
func (a *Archiver) Archive(ctx context.Context, raw []byte, receivedAt time.Time) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("empty payload")
	}
	key := ObjectKey(receivedAt, uuid.NewString())
	if err := a.store.Put(ctx, a.bucket, key, contentTypeJSON, raw); err != nil {
		return "", err
	}
	return key, nil
}

// ObjectKey builds whatsapp/YYYY/MM/DD/<unix-nanos>_<id>.json in UTC.
func ObjectKey(receivedAt time.Time, id string) string {
	t := receivedAt.UTC()
	return path.Join(
		keyPrefix,
		t.Format("2006"),
		t.Format("01"),
		t.Format("02"),
		t.Format("150405.000000000")+"_"+id+".json",
	)
}
