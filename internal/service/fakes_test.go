package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"document-service/internal/models"
	"document-service/internal/storage"
)

const testBaseURL = "https://acct.example.com/assets/"

type fakeBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	public    map[string]bool
	uploads   int
	streams   int
	digests   map[string][]byte
	deletes   []string
	uploadErr error
	deleteErr error
	listErr   error
	listHook  func()
	now       time.Time
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{
		objects: map[string][]byte{},
		public:  map[string]bool{},
		digests: map[string][]byte{},
		now:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeBlobStore) UploadBuffer(_ context.Context, name string, data []byte, _ string, isPublic bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.objects[name] = data
	f.public[name] = isPublic
	return testBaseURL + name, nil
}

func (f *fakeBlobStore) UploadStream(_ context.Context, name string, r io.Reader, size int64, _ string, isPublic bool, contentMD5 []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams++
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if int64(len(data)) != size {
		return "", errors.New("short stream")
	}
	f.objects[name] = data
	f.public[name] = isPublic
	f.digests[name] = contentMD5
	return testBaseURL + name, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, name)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, name)
	return nil
}

func (f *fakeBlobStore) SignedURLWithMetadata(_ context.Context, name string, expiresIn time.Duration) (*storage.SignedURL, error) {
	return &storage.SignedURL{
		URL:       testBaseURL + name + "?sig=test",
		ExpiresAt: f.now.Add(expiresIn),
		ExpiresIn: int(expiresIn / time.Second),
	}, nil
}

func (f *fakeBlobStore) ExtractBlobPath(urlOrPath string) string {
	p := strings.TrimPrefix(urlOrPath, testBaseURL)
	if i := strings.Index(p, "?"); i >= 0 {
		p = p[:i]
	}
	return p
}

func (f *fakeBlobStore) Container() string { return "assets" }

func (f *fakeBlobStore) List(_ context.Context, prefix string) ([]string, error) {
	if f.listHook != nil {
		f.listHook()
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

type fakeAssetStore struct {
	mu        sync.Mutex
	assets    map[string]*models.Asset
	creates   int
	deletes   []deleteCall
	createErr error
	deleteErr error
	findErr   error
}

type deleteCall struct {
	id   string
	hard bool
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{assets: map[string]*models.Asset{}}
}

func (f *fakeAssetStore) Create(_ context.Context, a *models.Asset) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	a.UpdatedAt = a.CreatedAt
	cp := *a
	f.assets[a.ID] = &cp
	return a, nil
}

func (f *fakeAssetStore) FindOne(_ context.Context, id string) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	a, ok := f.assets[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssetStore) FindByBlobName(_ context.Context, blobName string) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, a := range f.assets {
		if a.BlobName == blobName {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAssetStore) DeleteOne(_ context.Context, id string, hard bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, deleteCall{id: id, hard: hard})
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	_, ok := f.assets[id]
	delete(f.assets, id)
	return ok, nil
}

func (f *fakeAssetStore) List(_ context.Context, filter models.AssetFilter, page, limit int) ([]*models.Asset, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*models.Asset
	for _, a := range f.assets {
		if filter.Purpose != "" && a.Purpose != filter.Purpose {
			continue
		}
		if filter.MediaKind != "" && a.MediaKind != filter.MediaKind {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return []*models.Asset{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (f *fakeAssetStore) UpdateStatus(_ context.Context, id string, status models.AssetStatus, message *string) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok {
		return nil, nil
	}
	a.Status = status
	a.StatusMessage = message
	cp := *a
	return &cp, nil
}

func (f *fakeAssetStore) AddVariant(_ context.Context, id string, v models.Variant) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok {
		return nil, nil
	}
	a.Variants = append(a.Variants, v)
	cp := *a
	return &cp, nil
}

func (f *fakeAssetStore) ListBlobReferences(context.Context) ([]models.BlobReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	refs := make([]models.BlobReference, 0, len(f.assets))
	for _, a := range f.assets {
		ref := models.BlobReference{AssetID: a.ID, BlobName: a.BlobName}
		for _, v := range a.Variants {
			ref.VariantURLs = append(ref.VariantURLs, v.URL)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

type fakePublisher struct {
	uploaded []string
	deleted  []string
	err      error
}

func (f *fakePublisher) PublishDocumentUploaded(_ context.Context, a *models.Asset) error {
	f.uploaded = append(f.uploaded, a.ID)
	return f.err
}

func (f *fakePublisher) PublishDocumentDeleted(_ context.Context, id, blobName string) error {
	f.deleted = append(f.deleted, id+"|"+blobName)
	return f.err
}

var errBoom = errors.New("boom")
