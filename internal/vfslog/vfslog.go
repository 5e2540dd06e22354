// Package vfslog provides the dispatch layer's structured logging. The
// teacher's own logging facade (fs.Debugf/fs.Infof) lives in the stripped
// fs package, so this exercises the teacher's declared logrus dependency
// directly instead.
package vfslog

import "github.com/sirupsen/logrus"

// L is the package-level logger every dispatch operation writes through.
// Tests may redirect its output via L.SetOutput.
var L = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}

// MountResolved logs a successful mount-table lookup.
func MountResolved(path, mountPoint, backendPath string) {
	L.WithFields(logrus.Fields{
		"path":        path,
		"mount_point": mountPoint,
		"backend_path": backendPath,
	}).Debug("resolved mount")
}

// AccessDenied logs an access-check failure.
func AccessDenied(op, path string) {
	L.WithFields(logrus.Fields{"op": op, "path": path}).Warn("access denied")
}

// Changed logs a successful mutating operation, the same set of operations
// that emit a 'rename' or 'change' event (spec.md §6).
func Changed(event, op, path string) {
	L.WithFields(logrus.Fields{"event": event, "op": op, "path": path}).Info("change")
}

// BackendError logs a backend-originated error before it is rewritten and
// returned to the caller.
func BackendError(op, path string, err error) {
	L.WithFields(logrus.Fields{"op": op, "path": path}).WithError(err).Error("backend error")
}
