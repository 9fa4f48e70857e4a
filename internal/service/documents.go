package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgallion1/lawsearch/internal/apperr"
	"github.com/dgallion1/lawsearch/internal/parser"
	"github.com/dgallion1/lawsearch/internal/pipeline"
	"go.uber.org/zap"
)

// DocumentInfo describes one bill in the data directory.
type DocumentInfo struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ModifiedAt  time.Time `json:"modified_at"`
	ContentHash string    `json:"content_hash,omitempty"`
}

// ListDocuments returns the supported files in the data directory.
func (s *Service) ListDocuments() ([]DocumentInfo, error) {
	entries, err := os.ReadDir(s.cfg.DataDir)
	if errors.Is(err, os.ErrNotExist) {
		return []DocumentInfo{}, nil
	}
	if err != nil {
		return nil, apperr.Internal("reading data directory", err)
	}
	docs := []DocumentInfo{}
	for _, e := range entries {
		if e.IsDir() || !parser.IsSupportedExtension(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		docs = append(docs, DocumentInfo{Name: e.Name(), Size: info.Size(), ModifiedAt: info.ModTime().UTC()})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// SaveDocument writes a bill into the data directory. name must already be
// a bare file name. The document is picked up by the next ingest.
func (s *Service) SaveDocument(name string, data []byte) (DocumentInfo, error) {
	if !parser.IsSupportedExtension(name) {
		return DocumentInfo{}, apperr.Validation("unsupported file type: %s", filepath.Ext(name))
	}
	if err := os.MkdirAll(s.cfg.DataDir, 0o755); err != nil {
		return DocumentInfo{}, apperr.Internal("creating data directory", err)
	}
	path := filepath.Join(s.cfg.DataDir, name)
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return DocumentInfo{}, apperr.Internal("writing document", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return DocumentInfo{}, apperr.Internal("writing document", err)
	}
	s.log.Info("document saved", zap.String("name", name), zap.Int("bytes", len(data)))
	return DocumentInfo{
		Name:        name,
		Size:        int64(len(data)),
		ModifiedAt:  s.now().UTC(),
		ContentHash: pipeline.ContentHashHex(data),
	}, nil
}

// DeleteDocument removes a bill from the data directory. Its divisions stay
// indexed until the next ingest with clear_existing.
func (s *Service) DeleteDocument(name string) error {
	if name != filepath.Base(name) || !parser.IsSupportedExtension(name) {
		return apperr.Validation("invalid document name %q", name)
	}
	err := os.Remove(filepath.Join(s.cfg.DataDir, name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return apperr.Internal(fmt.Sprintf("deleting %s", name), err)
	}
	s.log.Info("document deleted", zap.String("name", name))
	return nil
}

// ErrDocumentNotFound is returned when a named document does not exist.
var ErrDocumentNotFound = errors.New("document not found")
