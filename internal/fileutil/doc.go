// Package fileutil provides small filesystem helpers for artifact directories.
package fileutil
