package archive

import (
	"archive/zip"
	"io"
	"os"

	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/werrors"
)

const (
	updateSuffix = ".upd"
	backupSuffix = ".bu"
)

// update performs the crash-safe copy-on-write archive update protocol:
// the live file is never modified in place. A deferred cleanup removes the
// sidecar files on every exit path so the invariant ("after any add, .upd
// and .bu do not exist on disk") always holds once update returns,
// regardless of success or failure.
func (a *Archive) update(novel []model.History) error {
	updPath := a.path + updateSuffix
	buPath := a.path + backupSuffix

	defer func() {
		os.Remove(updPath)
		os.Remove(buPath)
	}()

	// (1) Copy the live file to <archive>.upd.
	if err := copyFile(a.path, updPath); err != nil {
		return werrors.Wrap(werrors.ErrIOError, "archive.update", a.path, err)
	}

	// (2)-(4) Open <archive>.upd as an append-mode ZIP writer, stream new
	// entries (only the novel records, never re-serializing what already
	// exists), close the writer.
	entries, err := a.serializeEntries(novel)
	if err != nil {
		return err
	}
	if err := appendEntries(updPath, entries); err != nil {
		return werrors.Wrap(werrors.ErrIOError, "archive.update", updPath, err)
	}

	// (5) Copy the live file to <archive>.bu (backup).
	if err := copyFile(a.path, buPath); err != nil {
		return werrors.Wrap(werrors.ErrIOError, "archive.update", a.path, err)
	}

	// (6) Rename <archive>.upd -> <archive>. If this fails, restore from
	// the backup so the live file is never left partial.
	if err := os.Rename(updPath, a.path); err != nil {
		if restoreErr := os.Rename(buPath, a.path); restoreErr != nil {
			a.log.WithError(restoreErr).Error("failed to restore archive backup after failed update rename")
			return werrors.Wrap(werrors.ErrIOError, "archive.update", a.path, restoreErr)
		}
		return werrors.Wrap(werrors.ErrIOError, "archive.update", a.path, err)
	}

	// (7) Delete <archive>.bu — handled by the deferred cleanup above.
	return nil
}

// copyFile copies src to dst, truncating dst if present.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// appendEntries rewrites path with its existing entries preserved
// byte-for-byte (copied raw, never recompressed) followed by the new
// entries and a freshly written central directory — the practical shape of
// "append-mode ZIP writer" achievable with the standard library's zip
// package, which cannot resume writing into an already-closed archive.
//
// The rewrite happens in a separate temp file while the original stays open
// for reading: zip.Writer.Copy reads raw bytes through the *zip.File's
// stored ReaderAt lazily, at call time, so the source file must still be
// open (and untouched) for every Copy call, not just at zip.OpenReader
// time. Writing in place would mean truncating path out from under the
// reader we're still copying from.
func appendEntries(path string, entries []writableEntry) (err error) {
	existing, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer existing.Close()

	tmpPath := path + ".rewrite"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	w := zip.NewWriter(f)
	for _, orig := range existing.File {
		if err = w.Copy(orig); err != nil {
			f.Close()
			return err
		}
	}
	for _, e := range entries {
		var fw io.Writer
		fw, err = w.Create(e.name)
		if err != nil {
			f.Close()
			return err
		}
		if _, err = fw.Write(e.body); err != nil {
			f.Close()
			return err
		}
	}
	if err = w.Close(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
