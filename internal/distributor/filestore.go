package distributor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileContentStore loads content descriptors from JSON files named
// <id>.json under a directory. It stands in for the external content
// management system in standalone deployments.
type FileContentStore struct {
	dir string
}

// NewFileContentStore creates a file-backed content store
func NewFileContentStore(dir string) *FileContentStore {
	return &FileContentStore{dir: dir}
}

type contentFile struct {
	Name        string            `json:"name"`
	Template    json.RawMessage   `json:"template"`
	DataSources map[string]string `json:"dataSources,omitempty"`
}

// GetContent loads one descriptor
func (s *FileContentStore) GetContent(ctx context.Context, contentID string) (*ContentDescriptor, error) {
	// Content ids double as file names, so path traversal is rejected
	if contentID == "" || strings.ContainsAny(contentID, "/\\") || strings.Contains(contentID, "..") {
		return nil, ErrContentNotFound
	}

	path := filepath.Join(s.dir, contentID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("read content file %s: %w", path, err)
	}

	var file contentFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse content file %s: %w", path, err)
	}

	name := file.Name
	if name == "" {
		name = contentID
	}

	return &ContentDescriptor{
		ID:          contentID,
		Name:        name,
		Template:    file.Template,
		DataSources: file.DataSources,
	}, nil
}

// PassthroughResolver delivers templates unrendered. Used when no
// external template engine is wired in.
type PassthroughResolver struct{}

// Resolve returns the descriptor's template as the payload
func (PassthroughResolver) Resolve(ctx context.Context, descriptor *ContentDescriptor) (json.RawMessage, error) {
	return descriptor.Template, nil
}
