//go:build integration

package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fil512/auntruth-sub001/internal/resolver"
	"github.com/fil512/auntruth-sub001/internal/web"
)

func TestIntegration_ServeSiteTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html>it</html>"), 0644))

	res, err := resolver.New(root, "/AuntRuth")
	require.NoError(t, err)

	s := New(":0", web.NewHandler(res, io.Discard))
	require.NoError(t, s.Listen())
	go func() { _ = s.Serve() }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	}()

	for _, target := range []string{"/", "/AuntRuth/"} {
		resp, err := http.Get("http://" + s.Addr() + target)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode, target)
		assert.Equal(t, "<html>it</html>", string(body), target)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"), target)
	}
}
