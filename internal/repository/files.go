package repository

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hericlibong/Infograph2Data/constants"
	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/entity"
)

const metadataFilename = "metadata.json"

// FileStore keeps uploaded binaries on disk, one directory per file id:
//
//	<root>/<file-id>/original.<ext>
//	<root>/<file-id>/metadata.json
//
// Identification page renders also live in the file's directory so deleting
// the file removes everything derived from it.
type FileStore struct {
	root string
	log  *slog.Logger
}

func NewFileStore(root string, log *slog.Logger) (*FileStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", root, err)
	}
	return &FileStore{root: root, log: log}, nil
}

// Save writes the uploaded content and its metadata, returning the new record.
func (s *FileStore) Save(content []byte, filename, mimeType string, pages *int) (*entity.FileMetadata, error) {
	if !constants.IsAllowedMIMEType(mimeType) {
		return nil, common.Errorf(common.KindInvalidInput, "unsupported content type: %s", mimeType)
	}

	meta := &entity.FileMetadata{
		ID:        uuid.NewString(),
		Filename:  filename,
		MIMEType:  mimeType,
		SizeBytes: int64(len(content)),
		Pages:     pages,
		CreatedAt: time.Now().UTC(),
	}

	dir := filepath.Join(s.root, meta.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create file dir: %w", err)
	}
	path := filepath.Join(dir, "original"+constants.ExtensionForMIME(mimeType))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	if err := s.writeMetadata(meta); err != nil {
		return nil, err
	}

	s.log.Info("store.file.saved", "file_id", meta.ID, "filename", filename, "size_bytes", meta.SizeBytes)
	return meta, nil
}

// Metadata loads the metadata record for a stored file.
func (s *FileStore) Metadata(fileID string) (*entity.FileMetadata, error) {
	raw, err := os.ReadFile(filepath.Join(s.root, fileID, metadataFilename))
	if os.IsNotExist(err) {
		return nil, common.Errorf(common.KindNotFound, "file not found: %s", fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata for %s: %w", fileID, err)
	}
	var meta entity.FileMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", fileID, err)
	}
	return &meta, nil
}

// Path returns the on-disk location of the stored original.
func (s *FileStore) Path(fileID string) (string, error) {
	meta, err := s.Metadata(fileID)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, fileID, "original"+constants.ExtensionForMIME(meta.MIMEType)), nil
}

// SetPages records the page count once it is known, after upload.
func (s *FileStore) SetPages(fileID string, pages int) error {
	meta, err := s.Metadata(fileID)
	if err != nil {
		return err
	}
	meta.Pages = &pages
	return s.writeMetadata(meta)
}

// Delete removes the file and everything derived from it.
func (s *FileStore) Delete(fileID string) error {
	if _, err := s.Metadata(fileID); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, fileID)); err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	s.log.Info("store.file.deleted", "file_id", fileID)
	return nil
}

// List returns metadata for all stored files, newest upload first.
func (s *FileStore) List() ([]*entity.FileMetadata, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list storage dir: %w", err)
	}
	var out []*entity.FileMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.Metadata(e.Name())
		if err != nil {
			// Stray directories without metadata are skipped, not fatal.
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// IdentificationImagePath returns where a rendered identification image for
// the given file should live. The render is kept alongside the original so a
// file delete also discards it.
func (s *FileStore) IdentificationImagePath(fileID, identificationID string) string {
	return filepath.Join(s.root, fileID, identificationID+".png")
}

func (s *FileStore) writeMetadata(meta *entity.FileMetadata) error {
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", meta.ID, err)
	}
	path := filepath.Join(s.root, meta.ID, metadataFilename)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
