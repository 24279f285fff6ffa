package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// KnowledgeFiles is the per-tenant view over the knowledge base bucket:
// uploaded documents under knowledge_base/<tenant>/ plus the urls.txt
// registry of web sources.
type KnowledgeFiles struct {
	store  Storage
	bucket string
}

func NewKnowledgeFiles(store Storage, bucket string) *KnowledgeFiles {
	return &KnowledgeFiles{store: store, bucket: bucket}
}

func tenantPrefix(tenantID string) string {
	return path.Join("knowledge_base", tenantID)
}

// ListDocuments returns the tenant's indexable files. The URL registry is
// excluded; it is a source list, not a document.
func (k *KnowledgeFiles) ListDocuments(ctx context.Context, tenantID string) ([]string, error) {
	objects, err := k.store.List(ctx, k.bucket, tenantPrefix(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list tenant %s documents: %w", tenantID, err)
	}

	var names []string
	for _, obj := range objects {
		if obj.Name == urlRegistryName || obj.Name == "" {
			continue
		}
		names = append(names, obj.Name)
	}
	return names, nil
}

func (k *KnowledgeFiles) DownloadDocument(ctx context.Context, tenantID, name string) ([]byte, error) {
	body, err := k.store.Download(ctx, k.bucket, path.Join(tenantPrefix(tenantID), name))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (k *KnowledgeFiles) UploadDocument(ctx context.Context, tenantID, name string, data io.Reader, contentType string) error {
	return k.store.Upload(ctx, k.bucket, path.Join(tenantPrefix(tenantID), name), data, contentType)
}

func (k *KnowledgeFiles) DeleteDocument(ctx context.Context, tenantID, name string) error {
	return k.store.Delete(ctx, k.bucket, path.Join(tenantPrefix(tenantID), name))
}

// ReadURLs returns the registered web sources, one per registry line.
// A missing registry reads as an empty list.
func (k *KnowledgeFiles) ReadURLs(ctx context.Context, tenantID string) ([]string, error) {
	body, err := k.store.Download(ctx, k.bucket, path.Join(tenantPrefix(tenantID), urlRegistryName))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read url registry: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read url registry: %w", err)
	}

	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	return urls, nil
}

// WriteURLs replaces the registry with the given list.
func (k *KnowledgeFiles) WriteURLs(ctx context.Context, tenantID string, urls []string) error {
	content := strings.Join(urls, "\n")
	if content != "" {
		content += "\n"
	}
	err := k.store.Upload(ctx, k.bucket,
		path.Join(tenantPrefix(tenantID), urlRegistryName),
		bytes.NewReader([]byte(content)), "text/plain")
	if err != nil {
		return fmt.Errorf("write url registry: %w", err)
	}
	return nil
}

// AppendURL registers a new web source, skipping duplicates.
func (k *KnowledgeFiles) AppendURL(ctx context.Context, tenantID, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("empty url")
	}

	urls, err := k.ReadURLs(ctx, tenantID)
	if err != nil {
		return err
	}
	for _, existing := range urls {
		if existing == url {
			return nil
		}
	}
	return k.WriteURLs(ctx, tenantID, append(urls, url))
}

// ReplaceURL swaps a registered web source for another, keeping its
// position in the registry. A missing old entry appends the new one.
func (k *KnowledgeFiles) ReplaceURL(ctx context.Context, tenantID, oldURL, newURL string) error {
	newURL = strings.TrimSpace(newURL)
	if newURL == "" {
		return errors.New("empty url")
	}

	urls, err := k.ReadURLs(ctx, tenantID)
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range urls {
		if existing == strings.TrimSpace(oldURL) {
			urls[i] = newURL
			replaced = true
		}
	}
	if !replaced {
		urls = append(urls, newURL)
	}
	return k.WriteURLs(ctx, tenantID, urls)
}

// RemoveURL drops a web source from the registry if present.
func (k *KnowledgeFiles) RemoveURL(ctx context.Context, tenantID, url string) error {
	urls, err := k.ReadURLs(ctx, tenantID)
	if err != nil {
		return err
	}

	kept := urls[:0]
	for _, existing := range urls {
		if existing != strings.TrimSpace(url) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(urls) {
		return nil
	}
	return k.WriteURLs(ctx, tenantID, kept)
}
