package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default pitchside data directory name (relative to home).
	DefaultDataDir = ".pitchside"
	// DBFile is the SQLite database filename.
	DBFile = "pitchside.db"
	// ClipsDir is the subdirectory of the published clips.
	ClipsDir = "clips"
	// UploadsDir is the subdirectory of the uploaded videos waiting to be processed.
	UploadsDir = "uploads"
	// WorkDir is the subdirectory where processed videos are written before the upload.
	WorkDir = "work"
	// ConfigFile is the default runtime configuration filename.
	ConfigFile = "pitchside.yaml"

	// ClipsURLPath is the HTTP path the clips are served on.
	ClipsURLPath = "/clips"
)

// DBPath returns the SQLite database path.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// ClipsPath returns the directory of the published clips.
func ClipsPath(dataDir string) string {
	return filepath.Join(dataDir, ClipsDir)
}

// UploadsPath returns the directory of the pending uploads.
func UploadsPath(dataDir string) string {
	return filepath.Join(dataDir, UploadsDir)
}

// WorkPath returns the directory of the videos being processed.
func WorkPath(dataDir string) string {
	return filepath.Join(dataDir, WorkDir)
}

// ConfigPath returns the default runtime configuration path.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, ConfigFile)
}
