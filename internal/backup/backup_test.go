package backup

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeSnapshot(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "database.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPackageAndUnpackageRoundTrip(t *testing.T) {
	const content = `{"2008634":[{"id":1,"pos":1,"timestamp":100,"user":{"username":"u"},"message":"hi"}]}`
	path := writeSnapshot(t, content)

	var uploaded []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "fileupload", r.FormValue("reqtype"))
		require.Equal(t, "12h", r.FormValue("time"))

		f, _, err := r.FormFile("fileToUpload")
		require.NoError(t, err)
		defer f.Close()
		uploaded, err = io.ReadAll(f)
		require.NoError(t, err)

		_, _ = w.Write([]byte("https://litter.catbox.moe/abc123.gz.enc"))
	}))
	defer srv.Close()

	p := NewPackager(NewUploader(srv.URL, zap.NewNop()), zap.NewNop())
	artifact, err := p.Package(context.Background(), path, "12h")
	require.NoError(t, err)
	require.Equal(t, "https://litter.catbox.moe/abc123.gz.enc", artifact.URL)
	require.Equal(t, "12h", artifact.Expiry)
	require.NotEmpty(t, artifact.Key)
	require.NotEmpty(t, uploaded)

	// The uploaded artifact never contains the plaintext snapshot.
	require.NotContains(t, string(uploaded), "2008634")

	artifactPath := filepath.Join(t.TempDir(), "artifact.gz.enc")
	require.NoError(t, os.WriteFile(artifactPath, uploaded, 0o600))
	outPath := filepath.Join(t.TempDir(), "restored.json")
	require.NoError(t, Unpackage(artifactPath, artifact.Key, outPath))

	restored, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, content, string(restored))
}

func TestPackageTreatsNonURLResponseAsFailure(t *testing.T) {
	path := writeSnapshot(t, "{}")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("No files given."))
	}))
	defer srv.Close()

	p := NewPackager(NewUploader(srv.URL, zap.NewNop()), zap.NewNop())
	_, err := p.Package(context.Background(), path, "1h")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rejected")
}

func TestPackageMissingSnapshotFails(t *testing.T) {
	p := NewPackager(NewUploader("http://unused.invalid", zap.NewNop()), zap.NewNop())
	_, err := p.Package(context.Background(), filepath.Join(t.TempDir(), "nope.json"), "12h")
	require.Error(t, err)
}

func TestUnpackageWrongKeyWritesNothing(t *testing.T) {
	path := writeSnapshot(t, `{"1":[]}`)

	var uploaded []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, _, err := r.FormFile("fileToUpload")
		require.NoError(t, err)
		defer f.Close()
		uploaded, err = io.ReadAll(f)
		require.NoError(t, err)
		_, _ = w.Write([]byte("https://litter.catbox.moe/xyz.gz.enc"))
	}))
	defer srv.Close()

	p := NewPackager(NewUploader(srv.URL, zap.NewNop()), zap.NewNop())
	_, err := p.Package(context.Background(), path, "24h")
	require.NoError(t, err)

	artifactPath := filepath.Join(t.TempDir(), "artifact.gz.enc")
	require.NoError(t, os.WriteFile(artifactPath, uploaded, 0o600))

	_, wrongKey, err := GenerateKey()
	require.NoError(t, err)
	outPath := filepath.Join(t.TempDir(), "restored.json")
	err = Unpackage(artifactPath, wrongKey, outPath)
	require.ErrorIs(t, err, ErrIntegrity)

	_, statErr := os.Stat(outPath)
	require.True(t, os.IsNotExist(statErr), "no partial output may be written")
}

func TestUnpackageCorruptedArtifact(t *testing.T) {
	artifactPath := filepath.Join(t.TempDir(), "artifact.gz.enc")
	require.NoError(t, os.WriteFile(artifactPath, []byte("definitely not an artifact"), 0o600))

	_, key, err := GenerateKey()
	require.NoError(t, err)
	err = Unpackage(artifactPath, key, filepath.Join(t.TempDir(), "out.json"))
	require.ErrorIs(t, err, ErrIntegrity)
}
