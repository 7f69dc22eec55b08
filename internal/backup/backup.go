// Package backup produces and consumes encrypted, transportable copies of
// the snapshot file: gzip compress, then authenticated encryption with a
// fresh one-time key, then upload to an anonymous file host. The reverse
// pipeline runs the exact inverse and fails loudly on a wrong key or a
// corrupted artifact.
package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Artifact describes one uploaded backup. It is ephemeral: communicated to
// the operator's channel, never persisted.
type Artifact struct {
	URL    string
	Key    string
	Expiry string
}

// Packager runs the compress-encrypt-upload pipeline.
type Packager struct {
	uploader *Uploader
	logger   *zap.Logger
}

// NewPackager builds a Packager around an Uploader.
func NewPackager(uploader *Uploader, logger *zap.Logger) *Packager {
	return &Packager{uploader: uploader, logger: logger}
}

// Package compresses and encrypts the snapshot file at path, uploads the
// sealed artifact with the requested expiry class, and returns the download
// URL plus the key string. Every intermediate file is removed on success and
// failure alike. The key is never sent to the file host.
func (p *Packager) Package(ctx context.Context, path, expiry string) (Artifact, error) {
	plain, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("read snapshot: %w", err)
	}

	key, keyStr, err := GenerateKey()
	if err != nil {
		return Artifact{}, err
	}

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(plain); err != nil {
		return Artifact{}, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return Artifact{}, fmt.Errorf("compress snapshot: %w", err)
	}

	sealed, err := Seal(key, compressed.Bytes())
	if err != nil {
		return Artifact{}, fmt.Errorf("encrypt snapshot: %w", err)
	}

	workDir, err := os.MkdirTemp("", "nyaa-backup-"+uuid.NewString())
	if err != nil {
		return Artifact{}, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			p.logger.Warn("Failed to clean up backup work dir",
				zap.String("dir", workDir), zap.Error(rmErr))
		}
	}()

	artifactPath := filepath.Join(workDir, filepath.Base(path)+".gz.enc")
	if err := os.WriteFile(artifactPath, sealed, 0o600); err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}

	url, err := p.uploader.Upload(ctx, artifactPath, expiry)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{URL: url, Key: keyStr, Expiry: expiry}, nil
}

// Unpackage reverses the pipeline: decrypt the artifact with the given key
// string, decompress, and write the recovered snapshot to outputPath. Nothing
// is written unless every stage succeeds; a wrong key or corrupted artifact
// surfaces as ErrIntegrity.
func Unpackage(artifactPath, keyStr, outputPath string) error {
	key, err := ParseKey(keyStr)
	if err != nil {
		return err
	}
	sealed, err := os.ReadFile(artifactPath)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	compressed, err := Open(key, sealed)
	if err != nil {
		return err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("decompress artifact: %w", err)
	}
	plain, err := io.ReadAll(gz)
	if err != nil {
		return fmt.Errorf("decompress artifact: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("decompress artifact: %w", err)
	}

	if err := os.WriteFile(outputPath, plain, 0o600); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
