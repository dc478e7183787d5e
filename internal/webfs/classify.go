package webfs

import (
	"os"
)

// FileClassification is the closed set of handling cases for a resolved path.
// Exactly one applies to any request; the dispatcher selects the handler from
// this value alone, so every case-selection decision is visible in one place.
type FileClassification int

const (
	// ClassMissing: the target does not exist.
	ClassMissing FileClassification = iota
	// ClassDirectory: the target is a directory.
	ClassDirectory
	// ClassRegularFile: a regular, non-executable-script file.
	ClassRegularFile
	// ClassExecutableScript: an executable regular file inside the script area.
	ClassExecutableScript
	// ClassOtherError: permission denied, I/O error, or an irregular file type.
	ClassOtherError
)

func (c FileClassification) String() string {
	switch c {
	case ClassMissing:
		return "Missing"
	case ClassDirectory:
		return "Directory"
	case ClassRegularFile:
		return "RegularFile"
	case ClassExecutableScript:
		return "ExecutableScript"
	case ClassOtherError:
		return "OtherError"
	default:
		return "Unknown"
	}
}

// Classify inspects the filesystem entry for rp and returns its
// classification together with the FileInfo when one was obtained. The
// classification is computed fresh on every call; the filesystem may change
// between requests and nothing here is cached.
//
// scriptRoot is the canonical absolute path of the script area. An executable
// regular file classifies as ExecutableScript only when it lies under it.
// Directory status always wins: a directory inside the script area is a
// Directory, never a script.
//
// rp must be within the document root; the dispatcher short-circuits
// out-of-root paths to Forbidden before classification.
func Classify(rp ResolvedPath, scriptRoot string) (FileClassification, os.FileInfo) {
	if rp.err != nil {
		return ClassOtherError, nil
	}

	fi, err := os.Stat(rp.FSPath())
	if err != nil {
		if os.IsNotExist(err) {
			return ClassMissing, nil
		}
		return ClassOtherError, nil
	}

	if fi.IsDir() {
		return ClassDirectory, fi
	}
	if !fi.Mode().IsRegular() {
		// Sockets, devices, pipes: not servable.
		return ClassOtherError, fi
	}
	if fi.Mode().Perm()&0111 != 0 && contained(rp.FSPath(), scriptRoot) {
		return ClassExecutableScript, fi
	}
	return ClassRegularFile, fi
}
