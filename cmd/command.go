// Package cmd provides common command line tools for the handcert
// binary.
package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

// FailOnError prints the error with a message and exits non-zero. Used
// by main for fatal conditions; library code returns errors instead.
func FailOnError(err error, msg string) {
	if err == nil {
		return
	}
	log.Fatalf("[!] %s - %s", msg, err)
}

// SignalContext returns a context cancelled on SIGTERM, SIGINT or
// SIGHUP. The issuance pipeline blocks indefinitely while the operator
// publishes the DNS record; this context is what makes that suspension
// cancellable with ^C.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
}

// WriteFileAtomic writes data to path via a temporary file and rename,
// so an interrupted run never leaves a partial artifact behind.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".handcert-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
