package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"wellrag/model"
	"wellrag/pkg/logging"
	"wellrag/types"
)

var ErrUnsupportedFile = errors.New("unsupported file type")

var supportedExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

const (
	StateArchived = iota
	StateBad
)

// FileLoader watches the source directory and turns files into documents.
type FileLoader struct {
	cfg       types.Config
	converter model.Converter
	logger    *logging.Logger

	mu         sync.Mutex
	lastSeen   map[string]time.Time
	processing map[string]bool
}

func NewFileLoader(cfg types.Config, converter model.Converter, logger *logging.Logger) (*FileLoader, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if err := createDirectories(cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir); err != nil {
		return nil, err
	}
	if cfg.MonitoringTime <= 0 {
		cfg.MonitoringTime = 5 * time.Second
	}
	return &FileLoader{
		cfg:        cfg,
		converter:  converter,
		logger:     logger,
		lastSeen:   make(map[string]time.Time),
		processing: make(map[string]bool),
	}, nil
}

func IsSupported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// WatchFile sends a file path to fileChan once the file has stopped changing
// for MonitoringTime. Files already present at start are picked up too.
func (l *FileLoader) WatchFile(ctx context.Context, fileChan chan<- string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(l.cfg.SourceDir); err != nil {
		return fmt.Errorf("watch %s: %w", l.cfg.SourceDir, err)
	}
	l.logger.Info("start monitoring folder", "dir", l.cfg.SourceDir)
	defer l.logger.Info("file watcher stopped")

	entries, err := os.ReadDir(l.cfg.SourceDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			l.touch(filepath.Join(l.cfg.SourceDir, e.Name()))
		}
	}

	tick := l.cfg.MonitoringTime / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				l.touch(event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				l.forget(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("file watcher error", "error", err)
		case <-ticker.C:
			for _, path := range l.readyFiles() {
				select {
				case fileChan <- path:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (l *FileLoader) touch(path string) {
	if !IsSupported(path) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.processing[path] {
		return
	}
	if _, seen := l.lastSeen[path]; !seen {
		l.logger.Info("new file detected", "file", path)
	}
	l.lastSeen[path] = time.Now()
}

func (l *FileLoader) forget(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.lastSeen, path)
	delete(l.processing, path)
}

// readyFiles marks files quiet for MonitoringTime as processing and returns them.
func (l *FileLoader) readyFiles() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var ready []string
	for path, seen := range l.lastSeen {
		if l.processing[path] || time.Since(seen) < l.cfg.MonitoringTime {
			continue
		}
		l.processing[path] = true
		ready = append(ready, path)
	}
	return ready
}

// Done releases a file handed out by WatchFile.
func (l *FileLoader) Done(path string) {
	l.forget(path)
}

// Load reads a file into a document named after the file.
func (l *FileLoader) Load(ctx context.Context, path string) (types.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return types.Document{}, fmt.Errorf("file does not exist: %s: %w", path, err)
	}

	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = l.loadPDF(ctx, path)
	case ".txt", ".md":
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	default:
		return types.Document{}, fmt.Errorf("%s: %w", path, ErrUnsupportedFile)
	}
	if err != nil {
		return types.Document{}, err
	}

	// The file name is the source shown in citations and prompt passages.
	name := filepath.Base(path)
	return types.NewDocument(name, GenerateTitle(name), name, text), nil
}

func (l *FileLoader) loadPDF(ctx context.Context, path string) (string, error) {
	if l.converter == nil {
		return "", errors.New("no PDF converter configured")
	}
	if err := ValidatePDF(path); err != nil {
		return "", err
	}

	cropped, cleanup, err := CropToTemp(path, l.cfg.CropTop, l.cfg.CropBottom)
	if err != nil {
		return "", err
	}
	defer cleanup()

	return l.converter.Convert(ctx, cropped)
}

// GenerateTitle turns a file name like "sleep_and-menopause.pdf" into
// "sleep and menopause".
func GenerateTitle(fileName string) string {
	fileName = filepath.Base(fileName)
	fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	fileName = strings.ReplaceAll(fileName, "_", " ")
	fileName = strings.ReplaceAll(fileName, "-", " ")
	return strings.TrimSpace(fileName)
}

// MoveToArchive moves a processed file into a dated folder under the archive
// directory, or the bad directory when fileState is StateBad.
func (l *FileLoader) MoveToArchive(filePath string, fileState int) (string, error) {
	dir := l.cfg.ArchiveDir
	if fileState == StateBad {
		dir = l.cfg.BadDir
	}

	destDir := filepath.Join(dir, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("error creating directory: %w", err)
	}

	destPath := filepath.Join(destDir, filepath.Base(filePath))
	ext := filepath.Ext(destPath)
	baseName := strings.TrimSuffix(filepath.Base(destPath), ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			break
		}
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", baseName, counter, ext))
	}

	if err := os.Rename(filePath, destPath); err != nil {
		// rename fails across devices
		if err := copyFile(filePath, destPath); err != nil {
			return "", fmt.Errorf("error moving file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", err
		}
	}

	l.logger.Info("file moved", "from", filePath, "to", destPath)
	return destPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func createDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
