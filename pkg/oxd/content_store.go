package oxd

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/whizsid/openxd-sub000/pkg/oxd/objectkey"
)

// ContentStoreOption configures a content store
type ContentStoreOption func(*contentStore)

// WithKeyGenerator sets the object key layout. Defaults to objectkey.FlatGenerator.
func WithKeyGenerator(g objectkey.Generator) ContentStoreOption {
	return func(s *contentStore) {
		s.keys = g
	}
}

// contentStore maps ContentStore onto a BlobStore backend.
type contentStore struct {
	backend string
	blob    BlobStore
	keys    objectkey.Generator
}

// NewContentStore returns a ContentStore that keeps asset bytes in blob.
// backendName is only used to label errors.
func NewContentStore(backendName string, blob BlobStore, opts ...ContentStoreOption) ContentStore {
	s := &contentStore{
		backend: backendName,
		blob:    blob,
		keys:    objectkey.NewFlatGenerator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *contentStore) Put(ctx context.Context, r io.Reader, namespace, ext string) (StorageKey, error) {
	key := StorageKey(s.keys.GenerateKey(namespace, uuid.New(), ext))
	if err := s.upload(ctx, r, key); err != nil {
		return "", s.wrap("put", key, err)
	}
	return key, nil
}

func (s *contentStore) Get(ctx context.Context, key StorageKey) (io.ReadCloser, error) {
	rc, err := s.blob.Download(ctx, string(key))
	if err != nil {
		return nil, s.wrap("get", key, err)
	}
	return rc, nil
}

func (s *contentStore) Delete(ctx context.Context, key StorageKey) error {
	if err := s.blob.Delete(ctx, string(key)); err != nil {
		return s.wrap("delete", key, err)
	}
	return nil
}

func (s *contentStore) Info(ctx context.Context, key StorageKey) (*AssetInfo, error) {
	meta, err := s.blob.GetObjectMeta(ctx, string(key))
	if err != nil {
		return nil, s.wrap("info", key, err)
	}
	return &AssetInfo{
		Extension: extOf(string(key)),
		Size:      meta.Size,
	}, nil
}

func (s *contentStore) Duplicate(ctx context.Context, key StorageKey) (StorageKey, error) {
	src, err := s.blob.Download(ctx, string(key))
	if err != nil {
		return "", s.wrap("duplicate", key, err)
	}
	defer src.Close()

	namespace := s.keys.Namespace(string(key))
	dst := StorageKey(s.keys.GenerateKey(namespace, uuid.New(), extOf(string(key))))
	if err := s.upload(ctx, src, dst); err != nil {
		return "", s.wrap("duplicate", dst, err)
	}
	return dst, nil
}

func (s *contentStore) upload(ctx context.Context, r io.Reader, key StorageKey) error {
	mimeType := "application/octet-stream"
	if kind, ok := Classify(extOf(string(key))); ok {
		mimeType = kind.MimeType()
	}
	return s.blob.UploadWithParams(ctx, r, UploadParams{
		ObjectKey: string(key),
		MimeType:  mimeType,
	})
}

func (s *contentStore) wrap(op string, key StorageKey, err error) error {
	return &StorageError{
		Backend: s.backend,
		Key:     key,
		Op:      op,
		Err:     err,
	}
}
