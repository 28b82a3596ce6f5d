package file

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/docx"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoparser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"

	"github.com/zaxchat/zax-backend/internal/model"
)

// Run consumes the extraction queue until ctx is done. Extraction is
// best effort; a failed file simply stays unprocessed.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.extractQ:
			if err := s.extract(ctx, id); err != nil {
				log.Printf("file: extraction failed for %s: %v", id, err)
			}
		}
	}
}

func (s *Service) extract(ctx context.Context, id string) error {
	sf, err := s.files.GetByID(ctx, id)
	if err != nil {
		return err
	}

	fileParser, err := newParser(ctx, sf)
	if err != nil {
		return err
	}

	reader, err := s.storage.Get(ctx, sf.StoragePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	docs, err := fileParser.Parse(ctx, reader)
	if err != nil {
		return fmt.Errorf("parser failed: %w", err)
	}

	var sb strings.Builder
	for _, d := range docs {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(d.Content)
	}

	return s.files.SetExtractedText(ctx, sf.ID, sb.String())
}

func newParser(ctx context.Context, sf *model.StoredFile) (einoparser.Parser, error) {
	switch sf.Category {
	case model.FileCategoryPDF:
		return pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	case model.FileCategoryDoc:
		if strings.ToLower(filepath.Ext(sf.OriginalFilename)) != ".docx" {
			return nil, fmt.Errorf("unsupported document type: %s", sf.OriginalFilename)
		}
		return docx.NewDocxParser(ctx, &docx.Config{
			ToSections:      false,
			IncludeComments: false,
			IncludeHeaders:  true,
			IncludeFooters:  false,
			IncludeTables:   true,
		})
	}
	if strings.HasPrefix(strings.ToLower(sf.ContentType), "text/") {
		return &textParser{}, nil
	}
	return nil, fmt.Errorf("unsupported file type: %s", sf.ContentType)
}

// textParser reads plain text files as a single document.
type textParser struct{}

func (p *textParser) Parse(_ context.Context, reader io.Reader, _ ...einoparser.Option) ([]*schema.Document, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}
	if len(content) == 0 {
		return []*schema.Document{}, nil
	}
	return []*schema.Document{{Content: string(content)}}, nil
}
