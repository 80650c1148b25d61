package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// filePlayer "plays" feedback by writing it to a single file, so a newer clip
// always replaces the previous one.
type filePlayer struct {
	mu   sync.Mutex
	path string
	out  io.Writer
}

func newFilePlayer(dir string, out io.Writer) *filePlayer {
	return &filePlayer{path: filepath.Join(dir, "focusflow-feedback.mp3"), out: out}
}

func (p *filePlayer) Play(url string) error {
	audio, err := decodeDataURL(url)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.WriteFile(p.path, audio, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	fmt.Fprintf(p.out, "  voice: %s\n", p.path)
	return nil
}

func (p *filePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = os.Remove(p.path)
}

func decodeDataURL(url string) ([]byte, error) {
	const marker = ";base64,"
	if !strings.HasPrefix(url, "data:") {
		return nil, errors.New("not a data url")
	}
	i := strings.Index(url, marker)
	if i < 0 {
		return nil, errors.New("data url is not base64 encoded")
	}
	return base64.StdEncoding.DecodeString(url[i+len(marker):])
}
