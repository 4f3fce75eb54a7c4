package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"assistgen-backend/internal/models"
	"assistgen-backend/internal/repository"
)

// DocumentService stores uploaded files and extracts their text so a
// conversation can reference them.
type DocumentService struct {
	docRepo     *repository.DocumentRepo
	storagePath string
}

func NewDocumentService(docRepo *repository.DocumentRepo, storagePath string) *DocumentService {
	return &DocumentService{docRepo: docRepo, storagePath: storagePath}
}

// Save writes the upload to local storage, extracts its text and records
// the document for the user.
func (s *DocumentService) Save(ctx context.Context, userID uuid.UUID, originalName, contentType string, r io.Reader) (*models.Document, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	switch ext {
	case ".txt", ".md", ".pdf":
	default:
		return nil, &ValidationError{Fields: map[string]string{
			"file": fmt.Sprintf("Unsupported file type %s (want .txt, .md or .pdf)", ext),
		}}
	}

	if err := os.MkdirAll(s.storagePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	filename := time.Now().Format("20060102_150405") + "_" + filepath.Base(originalName)
	path := filepath.Join(s.storagePath, filename)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(f, r)
	f.Close()
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	text, err := extractText(path, ext)
	if err != nil {
		os.Remove(path)
		return nil, &ValidationError{Fields: map[string]string{"file": err.Error()}}
	}

	doc := &models.Document{
		UserID:       userID,
		Filename:     filename,
		OriginalName: originalName,
		ContentType:  contentType,
		SizeBytes:    size,
		TextChars:    len([]rune(text)),
		StoragePath:  path,
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		os.Remove(path)
		return nil, err
	}

	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, userID uuid.UUID) ([]models.Document, error) {
	return s.docRepo.ListByUser(ctx, userID)
}

func extractText(path, ext string) (string, error) {
	if ext == ".pdf" {
		return extractPDFText(path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", fmt.Errorf("text file is empty")
	}
	return text, nil
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unreadable pages rather than failing the whole upload.
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text found in pdf")
	}
	return text, nil
}
