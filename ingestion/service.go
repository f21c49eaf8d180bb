package ingestion

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentExtractions = 4

// Submission lists every source of one wizard submission. Nil pointers and an
// empty Website mean the source was not supplied.
type Submission struct {
	Website         string
	Attachments     []Attachment
	Guidelines      *Attachment
	ApplicationForm *Attachment
}

// Extracted mirrors Submission with one Extraction per supplied source.
// Attachments keep the order they were submitted in.
type Extracted struct {
	Website         *Extraction
	Attachments     []Extraction
	Guidelines      *Extraction
	ApplicationForm *Extraction
}

type Service struct {
	extractors map[SourceKind]Extractor
	logger     *zap.Logger
}

func NewService(fetcher *Fetcher, resolver *Resolver, logger *zap.Logger) *Service {
	if fetcher == nil {
		fetcher = NewFetcher(nil, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = NewResolver(nil, 0, logger)
	}
	links := NewLinkExtractor(fetcher, resolver)
	return &Service{
		extractors: map[SourceKind]Extractor{
			KindPDFFile: PDFExtractor{},
			KindPDFURL:  links,
			KindWebURL:  links,
		},
		logger: logger,
	}
}

// ExtractSubmission extracts every supplied source concurrently. It never
// fails: each source yields an Extraction that either carries text or the
// error that prevented it.
func (s *Service) ExtractSubmission(ctx context.Context, sub Submission) Extracted {
	out := Extracted{Attachments: make([]Extraction, len(sub.Attachments))}

	var g errgroup.Group
	g.SetLimit(maxConcurrentExtractions)

	if sub.Website != "" {
		out.Website = &Extraction{}
		g.Go(func() error {
			*out.Website = s.Extract(ctx, "Company Website", LinkAttachment("website", sub.Website))
			return nil
		})
	}
	for i := range sub.Attachments {
		g.Go(func() error {
			att := sub.Attachments[i]
			out.Attachments[i] = s.Extract(ctx, AttachmentLabel(att), att)
			return nil
		})
	}
	if sub.Guidelines != nil {
		out.Guidelines = &Extraction{}
		g.Go(func() error {
			*out.Guidelines = s.Extract(ctx, "Grant Guidelines", *sub.Guidelines)
			return nil
		})
	}
	if sub.ApplicationForm != nil {
		out.ApplicationForm = &Extraction{}
		g.Go(func() error {
			*out.ApplicationForm = s.Extract(ctx, "Application Form", *sub.ApplicationForm)
			return nil
		})
	}

	// Workers only write their own slot and always return nil.
	_ = g.Wait()
	return out
}

// Extract runs a single attempt for one source. The returned text is
// normalized.
func (s *Service) Extract(ctx context.Context, label string, src Attachment) Extraction {
	result := Extraction{Label: label, Source: src}

	text, err := s.extract(ctx, src)
	if err != nil {
		result.Err = err
		s.logger.Warn("source extraction failed",
			zap.String("source", label),
			zap.String("kind", string(result.Kind())),
			zap.Error(err),
		)
		return result
	}

	result.Text = Normalize(text)
	s.logger.Debug("source extracted",
		zap.String("source", label),
		zap.Int("chars", len(result.Text)),
	)
	return result
}

func (s *Service) extract(ctx context.Context, src Attachment) (string, error) {
	extractor, ok := s.extractors[src.Kind]
	if !ok {
		return "", sourceErr(Unsupported, src.Name, fmt.Errorf("source kind %q", src.Kind))
	}
	return extractor.Extract(ctx, src)
}

// AttachmentLabel names an attachment for corpus section headers.
func AttachmentLabel(att Attachment) string {
	if att.Kind == KindPDFFile {
		return "PDF: " + att.Name
	}
	return "URL: " + att.Locator
}
