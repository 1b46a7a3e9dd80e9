// Package document loads the candidate document the model is grounded on.
package document

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"github.com/fairyhunter13/career-agent-api/internal/config"
	"github.com/fairyhunter13/career-agent-api/internal/domain"
	"github.com/fairyhunter13/career-agent-api/pkg/textx"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// maxSourceBytes caps a single source; anything larger is rejected.
	maxSourceBytes = 10 << 20
)

// ErrUnsupported is returned for content that is neither text, PDF nor DOCX.
var ErrUnsupported = errors.New("unsupported document type")

// ObjectGetter is the subset of *s3.Client the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Loader resolves document sources in order.
type Loader struct {
	objects  ObjectGetter
	fallback string
}

// NewLoader builds a loader. objects may be nil, in which case s3:// sources
// are skipped.
func NewLoader(objects ObjectGetter, fallback string) *Loader {
	return &Loader{objects: objects, fallback: fallback}
}

// NewS3Client returns a client for S3 or an S3-compatible store such as R2.
// It returns nil when no endpoint and no static credentials are configured.
func NewS3Client(ctx context.Context, cfg config.Config) (*s3.Client, error) {
	if cfg.S3Endpoint == "" && cfg.S3AccessKey == "" {
		return nil, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("op=document.NewS3Client: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Load returns the first source that yields non-empty text. When none does,
// the fallback text is returned with source "fallback".
func (l *Loader) Load(ctx context.Context, sources []string) domain.Document {
	for _, src := range sources {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		text, err := l.loadOne(ctx, src)
		if err != nil {
			slog.Warn("document source skipped", slog.String("source", src), slog.Any("error", err))
			continue
		}
		if text == "" {
			slog.Warn("document source empty", slog.String("source", src))
			continue
		}
		slog.Info("document loaded", slog.String("source", src), slog.Int("chars", len(text)))
		return domain.Document{Text: text, Source: src}
	}
	slog.Warn("no document source available, using fallback")
	return domain.Document{Text: textx.Clean(l.fallback), Source: "fallback"}
}

func (l *Loader) loadOne(ctx context.Context, src string) (string, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(src, "s3://") {
		data, err = l.readObject(ctx, src)
	} else {
		data, err = readFile(src)
	}
	if err != nil {
		return "", err
	}
	text, err := Extract(src, data)
	if err != nil {
		return "", err
	}
	return textx.Clean(text), nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readCapped(f)
}

func (l *Loader) readObject(ctx context.Context, src string) ([]byte, error) {
	if l.objects == nil {
		return nil, fmt.Errorf("object storage not configured")
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(src, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("malformed object source %q", src)
	}
	out, err := l.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()
	return readCapped(out.Body)
}

func readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSourceBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSourceBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", maxSourceBytes)
	}
	return data, nil
}

// Extract turns raw bytes into plain text. The extension decides first; other
// content is sniffed and must be text.
func Extract(name string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDOCX(data)
	}
	mt := mimetype.Detect(data)
	switch {
	case mt.Is(mimePDF):
		return extractPDF(data)
	case mt.Is(mimeDOCX):
		return extractDOCX(data)
	case strings.HasPrefix(mt.String(), "text/"):
		return string(data), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, mt.String())
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	defer doc.Close()
	return docxPlainText(doc.Editable().GetContent()), nil
}

// docxPlainText keeps the character data of WordprocessingML and ends each
// paragraph with a newline.
func docxPlainText(content string) string {
	dec := xml.NewDecoder(strings.NewReader(content))
	dec.Strict = false
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			if t.Name.Local == "tab" {
				b.WriteByte('\t')
			}
			if t.Name.Local == "br" {
				b.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}
