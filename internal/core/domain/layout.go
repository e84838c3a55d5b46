package domain

import "path/filepath"

const (
	// DirName is the name of the internal workspace directory.
	DirName = ".pipecache"

	// StoreDirName is the name of the store directory.
	StoreDirName = "store"

	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "pipecache.yaml"

	// StagesDirName holds one directory per stage below the store root.
	StagesDirName = "stages"

	// ObjectsDirName holds content addressed payloads below the store root.
	ObjectsDirName = "objects"

	// MetadataDirName holds one append-only record log per task below the store root.
	MetadataDirName = "metadata"

	// StageMarkerFile marks a stage directory as initialized.
	StageMarkerFile = ".ready"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultStorePath returns the default path for the store.
// It joins .pipecache and store.
func DefaultStorePath() string {
	return filepath.Join(DirName, StoreDirName)
}
