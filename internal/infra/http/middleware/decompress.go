package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/dealroom/api/pkg/apierror"
)

// DecompressConfig configures the decompression middleware.
type DecompressConfig struct {
	// MaxDecompressedSize caps the decoded body. Default: 1MB.
	MaxDecompressedSize int64
	// MaxCompressionRatio rejects bodies that expand more than this. Default: 100.
	MaxCompressionRatio float64
}

// DefaultDecompressConfig returns the default configuration.
func DefaultDecompressConfig() DecompressConfig {
	return DecompressConfig{
		MaxDecompressedSize: DefaultMaxBodySize,
		MaxCompressionRatio: 100,
	}
}

var errRatioExceeded = errors.New("compression ratio exceeded")

// Decompress decodes gzip and zstd request bodies per Content-Encoding.
// Place it before BodyLimit so the limit applies to the decoded size.
func Decompress(cfg DecompressConfig) func(http.Handler) http.Handler {
	if cfg.MaxDecompressedSize <= 0 {
		cfg.MaxDecompressedSize = DefaultMaxBodySize
	}
	if cfg.MaxCompressionRatio <= 0 {
		cfg.MaxCompressionRatio = 100
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasNoBody(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			encoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding")))
			if encoding == "" || encoding == "identity" {
				next.ServeHTTP(w, r)
				return
			}
			if encoding != "gzip" && encoding != "zstd" {
				apierror.New(http.StatusUnsupportedMediaType, apierror.CodeBadRequest,
					fmt.Sprintf("Unsupported Content-Encoding: %s", encoding)).WriteJSON(w)
				return
			}

			body, err := decompressBody(r.Body, encoding, cfg)
			if err != nil {
				apierror.BadRequest("Invalid compressed request body").WriteJSON(w)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			r.Header.Del("Content-Encoding")

			next.ServeHTTP(w, r)
		})
	}
}

func decompressBody(body io.ReadCloser, encoding string, cfg DecompressConfig) ([]byte, error) {
	defer body.Close()

	compressed, err := io.ReadAll(io.LimitReader(body, cfg.MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("read compressed body: %w", err)
	}
	if len(compressed) == 0 {
		return []byte{}, nil
	}

	var reader io.Reader
	switch encoding {
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gr.Close()
		reader = gr
	case "zstd":
		//nolint:gosec // G115: MaxDecompressedSize is positive
		zr, err := zstd.NewReader(bytes.NewReader(compressed),
			zstd.WithDecoderMaxMemory(uint64(cfg.MaxDecompressedSize)),
			zstd.WithDecoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		reader = zr
	}

	decoded, err := io.ReadAll(io.LimitReader(reader, cfg.MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if int64(len(decoded)) > cfg.MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed size exceeds %d bytes", cfg.MaxDecompressedSize)
	}
	if float64(len(decoded))/float64(len(compressed)) > cfg.MaxCompressionRatio {
		return nil, errRatioExceeded
	}
	return decoded, nil
}
