package localfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
)

// StoreConfig is the configuration of the local filesystem store.
type StoreConfig struct {
	Root string
	// PublicURL is the URL the root is served on, e.g. http://localhost:8080/clips.
	PublicURL string
	Logger    log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}
	if c.PublicURL == "" {
		return fmt.Errorf("public url is required")
	}
	if _, err := url.Parse(c.PublicURL); err != nil {
		return fmt.Errorf("invalid public url: %w", err)
	}
	c.PublicURL = strings.TrimSuffix(c.PublicURL, "/")
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "objectstore.LocalFS"})
	return nil
}

// Store stores objects on a local directory served over HTTP.
type Store struct {
	root      string
	publicURL string
	logger    log.Logger
}

// NewStore returns a new local filesystem store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.Root, 0755); err != nil {
		return nil, fmt.Errorf("could not create root directory: %w", err)
	}

	return &Store{
		root:      cfg.Root,
		publicURL: cfg.PublicURL,
		logger:    cfg.Logger,
	}, nil
}

func cleanKey(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid key %q: %w", key, model.ErrNotValid)
	}
	return clean, nil
}

// Upload writes the object and returns its public URL. The object is only visible once
// completely written.
func (s *Store) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	abs := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", fmt.Errorf("could not create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(abs), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("could not create object: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("could not write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("could not close object: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", fmt.Errorf("could not set object permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		return "", fmt.Errorf("could not publish object: %w", err)
	}

	u := s.publicURL + "/" + (&url.URL{Path: clean}).EscapedPath()
	s.logger.WithCtxValues(ctx).Debugf("Uploaded %s (%s)", clean, contentType)
	return u, nil
}

// Handler serves the stored objects, mount it on the public URL path.
func (s *Store) Handler() http.Handler {
	fs := http.FileServer(http.Dir(s.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ext := strings.TrimPrefix(path.Ext(r.URL.Path), ".")
		if model.IsVideoExtension(ext) {
			w.Header().Set("Content-Type", model.VideoContentType(ext))
		}
		fs.ServeHTTP(w, r)
	})
}
