// Package controlfile implements the sidecar v1 persistence of a download's
// TransferStatus plus its source URI list, stored next to the sink file as
// "<sink-name>.caracal".
package controlfile

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/caracaldl/caracal/internal/caracalerr"
	"github.com/caracaldl/caracal/internal/engine/transfer"
	"github.com/caracaldl/caracal/internal/utils"
)

// Suffix is the sidecar file extension, matching the original protocol.
const Suffix = "caracal"

// ControlFile manages the sidecar next to one sink file.
type ControlFile struct {
	path string
	uris []string
}

// PathFor derives the sidecar path for a given sink path.
func PathFor(sinkPath string) string {
	return sinkPath + "." + Suffix
}

// New opens (or prepares to create) the control file for sinkPath. It
// attempts to read and parse any existing sidecar; on any read or parse
// failure it returns a fresh control file with no prior status — a corrupt
// control file behaves exactly like "no resume available".
func New(sinkPath string, uris []string) (*ControlFile, *transfer.Status) {
	cf := &ControlFile{path: PathFor(sinkPath), uris: uris}

	data, err := os.ReadFile(cf.path)
	if err != nil {
		return cf, nil
	}
	var rec v1Record
	if err := json.Unmarshal(data, &rec); err != nil {
		utils.Debug("controlfile: %s is corrupt, ignoring: %v", cf.path, err)
		return cf, nil
	}
	return cf, rec.toTransferStatus()
}

// Path returns the sidecar's filesystem path.
func (cf *ControlFile) Path() string { return cf.path }

// WriteStatus rewrites the sidecar whole-file: truncate, seek to 0, write
// the serialized v1 record, then flush and fsync.
func (cf *ControlFile) WriteStatus(status *transfer.Status) error {
	rec := fromTransferStatus(cf.uris, status)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return caracalerr.Wrap(caracalerr.KindFilesystem, "controlfile.WriteStatus", err)
	}

	if err := os.MkdirAll(filepath.Dir(cf.path), 0o755); err != nil {
		return caracalerr.Wrap(caracalerr.KindFilesystem, "controlfile.WriteStatus", err)
	}

	f, err := os.OpenFile(cf.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return caracalerr.Wrap(caracalerr.KindFilesystem, "controlfile.WriteStatus", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return caracalerr.Wrap(caracalerr.KindFilesystem, "controlfile.WriteStatus", err)
	}
	if err := f.Sync(); err != nil {
		return caracalerr.Wrap(caracalerr.KindFilesystem, "controlfile.WriteStatus", err)
	}
	return nil
}

// Remove deletes the sidecar. Errors are logged, not propagated — matching
// the original's best-effort removal on completion.
func (cf *ControlFile) Remove() {
	if err := os.Remove(cf.path); err != nil && !os.IsNotExist(err) {
		utils.Debug("controlfile: failed to remove %s: %v", cf.path, err)
	}
}

// Exists reports whether a sidecar is currently on disk for sinkPath.
func Exists(sinkPath string) bool {
	_, err := os.Stat(PathFor(sinkPath))
	return err == nil
}
