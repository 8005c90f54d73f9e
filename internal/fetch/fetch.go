package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/metrics"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/util/retry"
)

// Source kinds, used as metric labels.
const (
	SourceHTTP   = "http"
	SourceFile   = "file"
	SourceInline = "inline"
)

// DefaultMaxSize bounds a single downloaded manifest.
const DefaultMaxSize = 32 << 20

// Document is one fetched manifest source.
type Document struct {
	// Source is the URL or file path the data came from, or "inline".
	Source string
	Data   []byte
}

// Fetcher retrieves manifest sources.
type Fetcher struct {
	HTTPClient   *http.Client
	Metrics      *metrics.Recorder
	RetryOptions []retry.Option
	// BaseDir resolves relative file paths. Defaults to the working directory.
	BaseDir string
	// MaxSize is the largest manifest body accepted from a URL. Defaults to
	// DefaultMaxSize.
	MaxSize int64
}

// New creates a Fetcher with a default HTTP client.
func New(recorder *metrics.Recorder) *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Metrics:    recorder,
	}
}

// IsURL reports whether source is an http(s) URL.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Fetch resolves source into one or more documents. Globs expand to every
// matching file in lexical order; a glob that matches nothing is an error.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]Document, error) {
	switch {
	case IsURL(source):
		data, err := f.download(ctx, source)
		f.Metrics.ObserveFetch(SourceHTTP, err)
		if err != nil {
			return nil, err
		}
		return []Document{{Source: source, Data: data}}, nil
	case strings.HasPrefix(source, "file://"):
		return f.readFiles(strings.TrimPrefix(source, "file://"))
	default:
		return f.readFiles(source)
	}
}

// Inline wraps literal YAML content as a document.
func (f *Fetcher) Inline(content string) Document {
	f.Metrics.ObserveFetch(SourceInline, nil)
	return Document{Source: SourceInline, Data: []byte(content)}
}

func (f *Fetcher) readFiles(pattern string) ([]Document, error) {
	if !filepath.IsAbs(pattern) && f.BaseDir != "" {
		pattern = filepath.Join(f.BaseDir, pattern)
	}

	paths := []string{pattern}
	if strings.ContainsAny(pattern, "*?[") {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			f.Metrics.ObserveFetch(SourceFile, err)
			return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			err := fmt.Errorf("no files match %q", pattern)
			f.Metrics.ObserveFetch(SourceFile, err)
			return nil, err
		}
		sort.Strings(matches)
		paths = matches
	}

	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p) // #nosec G304 - manifest path supplied by the stack author
		f.Metrics.ObserveFetch(SourceFile, err)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest %s: %w", p, err)
		}
		docs = append(docs, Document{Source: p, Data: data})
	}
	return docs, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("invalid manifest URL %q: %w", rawURL, err)
	}

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	limit := f.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}

	var body []byte
	opts := append([]retry.Option{
		retry.WithName("download " + rawURL),
		retry.WithMaxRetries(4),
	}, f.RetryOptions...)

	err := retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to create request: %w", err))
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Fatal(fmt.Errorf("failed to download manifest: %w", err))
			}
			return fmt.Errorf("failed to download manifest: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := fmt.Errorf("failed to download manifest from %s: HTTP %d", rawURL, resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Fatal(statusErr)
			}
			return statusErr
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
		if err != nil {
			return fmt.Errorf("failed to read manifest body: %w", err)
		}
		if int64(len(data)) > limit {
			return retry.Fatal(fmt.Errorf("manifest %s exceeds %d bytes", rawURL, limit))
		}
		body = data
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	log.FromContext(ctx).V(1).Info("downloaded manifest", "url", rawURL, "bytes", len(body))
	return body, nil
}
