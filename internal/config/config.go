package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Compiled-in defaults for a stock deployment. The served tree lives in
// htdocs/ next to the binary and is additionally mounted under /AuntRuth.
const (
	DefaultDocRoot   = "htdocs"
	DefaultURLPrefix = "/AuntRuth"
	DefaultPort      = 8000
)

// Config is the immutable startup configuration. It is established once
// in Load and shared read-only across all requests.
type Config struct {
	// DocRoot is the absolute path of the directory tree being served.
	DocRoot string
	// URLPrefix is the mount segment the tree is also reachable under,
	// normalized to "/name" form (leading slash, no trailing slash).
	URLPrefix string
	// Port is the TCP port to listen on.
	Port int
}

// loadDotenv is swappable for tests.
var loadDotenv = func() { _ = godotenv.Load() }

// Load builds the configuration from compiled-in defaults and the
// AUNTRUTH_* environment (including a .env file, if present). It fails
// if the document root does not exist; the server must never start
// without a tree to serve.
func Load() (*Config, error) {
	loadDotenv()

	cfg := &Config{
		DocRoot:   envOr("AUNTRUTH_DOC_ROOT", DefaultDocRoot),
		URLPrefix: normalizePrefix(envOr("AUNTRUTH_URL_PREFIX", DefaultURLPrefix)),
		Port:      DefaultPort,
	}

	if v := os.Getenv("AUNTRUTH_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid AUNTRUTH_PORT %q: %w", v, err)
		}
		cfg.Port = p
	}

	abs, err := filepath.Abs(cfg.DocRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving document root %q: %w", cfg.DocRoot, err)
	}
	cfg.DocRoot = abs

	st, err := os.Stat(cfg.DocRoot)
	if err != nil {
		return nil, fmt.Errorf("document root %s does not exist", cfg.DocRoot)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("document root %s is not a directory", cfg.DocRoot)
	}

	return cfg, nil
}

// normalizePrefix coerces a mount prefix into "/name" form.
func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
