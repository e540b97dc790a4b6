package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileRotator is a size-rotated log file. Backups are numbered, newest
// first: overlay.log, overlay.1.log, overlay.2.log.gz, ...
type FileRotator struct {
	config *Config
	mu     sync.Mutex
	file   *os.File
	size   int64
}

// NewFileRotator opens cfg.FilePath for appending.
func NewFileRotator(cfg *Config) (*FileRotator, error) {
	r := &FileRotator{config: cfg}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) open() error {
	file, err := os.OpenFile(r.config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file = file
	r.size = info.Size()
	return nil
}

func (r *FileRotator) maxBytes() int64 {
	if r.config.MaxSize <= 0 {
		return 0
	}
	return r.config.MaxSize * 1024 * 1024
}

// Write implements io.Writer. A write that would cross the size limit
// rotates first; a single oversized write still goes to a fresh file.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	if max := r.maxBytes(); max > 0 && r.size > 0 && r.size+int64(len(p)) > max {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// backupPath returns the path of backup i (1 is the newest).
func (r *FileRotator) backupPath(i int) string {
	path := r.config.FilePath
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.%d%s", strings.TrimSuffix(path, ext), i, ext)
}

// existing returns the backup path for i, compressed or not, if present.
func (r *FileRotator) existing(i int) (string, bool) {
	for _, p := range []string{r.backupPath(i), r.backupPath(i) + ".gz"} {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func (r *FileRotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}
	r.file = nil

	keep := r.config.MaxBackups
	if keep > 0 {
		// Drop the oldest, then shift the rest up by one.
		if p, ok := r.existing(keep); ok {
			os.Remove(p)
		}
		for i := keep - 1; i >= 1; i-- {
			p, ok := r.existing(i)
			if !ok {
				continue
			}
			dst := r.backupPath(i + 1)
			if strings.HasSuffix(p, ".gz") {
				dst += ".gz"
			}
			if err := os.Rename(p, dst); err != nil {
				return fmt.Errorf("shift log backup: %w", err)
			}
		}
		if err := os.Rename(r.config.FilePath, r.backupPath(1)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rename log file: %w", err)
		}
		if r.config.Compress {
			if p, ok := r.existing(2); ok && !strings.HasSuffix(p, ".gz") {
				compressFile(p)
			}
		}
	} else if err := os.Remove(r.config.FilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove log file: %w", err)
	}

	r.removeExpired()
	return r.open()
}

// compressFile gzips path and removes it. Failures leave path in place.
func compressFile(path string) {
	in, err := os.Open(path)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return
	}
	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(path)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		os.Remove(path + ".gz")
		return
	}
	if err := gz.Close(); err != nil {
		out.Close()
		os.Remove(path + ".gz")
		return
	}
	out.Close()
	os.Remove(path)
}

// removeExpired deletes backups older than MaxAge days.
func (r *FileRotator) removeExpired() {
	if r.config.MaxAge <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -r.config.MaxAge)
	for i := 1; i <= r.config.MaxBackups; i++ {
		p, ok := r.existing(i)
		if !ok {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.ModTime().Before(cutoff) {
			os.Remove(p)
		}
	}
}

// Close closes the rotator and its underlying file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// Sync flushes any buffered data to the file.
func (r *FileRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}

// Files returns the current log file followed by its backups, newest first.
func (r *FileRotator) Files() []string {
	files := []string{r.config.FilePath}
	for i := 1; i <= r.config.MaxBackups; i++ {
		if p, ok := r.existing(i); ok {
			files = append(files, p)
		}
	}
	return files
}
