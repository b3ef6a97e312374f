//go:build !unix

package blobstore

import "os"

// Advisory locking is only available on unix; elsewhere the lock file is
// created but not enforced.
func lockFileExclusive(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
