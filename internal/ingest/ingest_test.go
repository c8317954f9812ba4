package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestJobFromPath(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "proof.png")
	writeFile(t, img, "png")
	writeFile(t, SidecarPath(img), `{"ticket_id":" T-9 ","expected_amount":499,"reference":"412345678901"}`)

	job, err := JobFromPath(img)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, img, job.Path)
	assert.Equal(t, "T-9", job.TicketID)
	assert.Equal(t, 499.0, job.Expected.Amount)
	assert.Equal(t, "412345678901", job.UserReference)
}

func TestReadSidecar_Errors(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "a.png")
	_, err := ReadSidecar(missing)
	assert.True(t, eris.Is(err, ErrNoSidecar))

	noTicket := filepath.Join(dir, "b.png")
	writeFile(t, SidecarPath(noTicket), `{"expected_amount":10}`)
	_, err = ReadSidecar(noTicket)
	assert.ErrorContains(t, err, "ticket_id is required")

	badAmount := filepath.Join(dir, "c.png")
	writeFile(t, SidecarPath(badAmount), `{"ticket_id":"T","expected_amount":0}`)
	_, err = ReadSidecar(badAmount)
	assert.Error(t, err)

	garbage := filepath.Join(dir, "d.png")
	writeFile(t, SidecarPath(garbage), `{`)
	_, err = ReadSidecar(garbage)
	assert.ErrorContains(t, err, "decode sidecar")
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.png"), "x")
	writeFile(t, filepath.Join(root, "a.png.json"), "{}")
	writeFile(t, filepath.Join(root, "nested", "b.JPG"), "x")
	writeFile(t, filepath.Join(root, "c.pdf"), "x")
	writeFile(t, filepath.Join(root, ".hidden", "d.png"), "x")

	paths, stats, err := ScanDirectory(root, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "a.png"),
		filepath.Join(root, "nested", "b.JPG"),
	}, paths)
	assert.Equal(t, uint32(2), stats.Matched)

	all, _, err := ScanDirectory(root, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, _, err = ScanDirectory(" ", true)
	assert.Error(t, err)
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "old.png")
	writeFile(t, existing, "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evCh, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    20 * time.Millisecond,
	})
	require.NoError(t, err)

	select {
	case p := <-evCh:
		assert.Equal(t, existing, p)
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan did not emit existing file")
	}

	fresh := filepath.Join(root, "new.jpeg")
	writeFile(t, filepath.Join(root, "ignored.txt"), "x")
	writeFile(t, fresh, "x")

	select {
	case p := <-evCh:
		assert.Equal(t, fresh, p)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not emit new file")
	}

	cancel()
	for range evCh {
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
