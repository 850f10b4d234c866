package logging

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotatingFile is an io.Writer that appends JSON log lines to dir/name and
// rotates the file once it would grow past maxBytes or is older than a day.
// Rotated files are gzipped and only the newest keep of them are retained.
type RotatingFile struct {
	mu       sync.Mutex
	dir      string
	name     string
	maxBytes int64
	keep     int
	now      func() time.Time

	file     *os.File
	size     int64
	openedAt time.Time
	wg       sync.WaitGroup
}

// OpenRotatingFile opens (or creates) dir/name for appending.
func OpenRotatingFile(dir, name string, maxSizeMB, keep int) (*RotatingFile, error) {
	if maxSizeMB <= 0 {
		return nil, fmt.Errorf("log file size must be positive, got %d MB", maxSizeMB)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	rf := &RotatingFile{
		dir:      dir,
		name:     name,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		keep:     keep,
		now:      time.Now,
	}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

// Path reports the location of the active log file.
func (rf *RotatingFile) Path() string {
	return filepath.Join(rf.dir, rf.name)
}

func (rf *RotatingFile) open() error {
	f, err := os.OpenFile(rf.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rf.file = f
	rf.size = info.Size()
	rf.openedAt = rf.now()
	return nil
}

func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, os.ErrClosed
	}
	if rf.size > 0 && (rf.size+int64(len(p)) > rf.maxBytes || rf.now().Sub(rf.openedAt) > 24*time.Hour) {
		if err := rf.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

func (rf *RotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	rotated := fmt.Sprintf("%s.%s", rf.Path(), rf.now().Format("20060102-150405.000"))
	if err := os.Rename(rf.Path(), rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}

	rf.wg.Add(1)
	go func() {
		defer rf.wg.Done()
		compress(rotated)
		rf.prune()
	}()

	return rf.open()
}

func compress(path string) {
	in, err := os.Open(path)
	if err != nil {
		return
	}
	defer in.Close()

	gzPath := path + ".gz"
	out, err := os.Create(gzPath)
	if err != nil {
		return
	}
	zw := gzip.NewWriter(out)
	_, copyErr := io.Copy(zw, in)
	closeErr := zw.Close()
	out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(gzPath)
		return
	}
	os.Remove(path)
}

// prune removes the oldest rotated files beyond the retention limit.
func (rf *RotatingFile) prune() {
	matches, err := filepath.Glob(rf.Path() + ".*")
	if err != nil || len(matches) <= rf.keep {
		return
	}
	// The timestamp suffix sorts chronologically.
	sort.Strings(matches)
	for _, path := range matches[:len(matches)-rf.keep] {
		os.Remove(path)
	}
}

// Close waits for pending compression and closes the active file.
func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	f := rf.file
	rf.file = nil
	rf.mu.Unlock()

	rf.wg.Wait()
	if f == nil {
		return nil
	}
	return f.Close()
}

// ReadRecent returns up to n of the newest entries in a JSON lines log file.
// Malformed lines are skipped and a missing file yields no entries.
func ReadRecent(path string, n int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
