// Package loader provides document loading adapters.
package loader

import (
	"context"
	"os"
	"path/filepath"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
)

// TextLoader loads plain text corpus files (.txt, .md).
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text document from the given path. The document's identity
// is its base filename.
func (l *TextLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return &entities.Document{
		Filename: filepath.Base(path),
		Path:     path,
		Content:  string(content),
		ModTime:  info.ModTime(),
	}, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}
