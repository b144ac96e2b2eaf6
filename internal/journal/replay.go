package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yanun0323/logs"

	"stratmgr/internal/codec"
	"stratmgr/internal/schema"
)

// Handler receives decoded events during replay.
type Handler interface {
	OnOrderJournal(ctx context.Context, oj schema.OrderJournal) error
	OnFillJournal(ctx context.Context, fj schema.FillJournal) error
}

// ReplayConfig controls journal replay.
type ReplayConfig struct {
	Dir             string
	FilePrefix      string
	DisableChecksum bool
	MaxPayloadSize  int
}

func (c ReplayConfig) withDefaults() ReplayConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Replayer feeds surviving journal frames through a handler in append
// order. A torn frame at the tail of the newest segment ends replay
// cleanly: the process died mid-write and the frame never happened.
type Replayer struct {
	cfg ReplayConfig
}

// NewReplayer validates the config and creates a replayer.
func NewReplayer(cfg ReplayConfig) (*Replayer, error) {
	cfg = cfg.withDefaults()
	if cfg.Dir == "" {
		return nil, fmt.Errorf("invalid replay config: Dir is empty")
	}
	return &Replayer{cfg: cfg}, nil
}

// Run replays every segment in file order.
func (r *Replayer) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("journal: replay handler is nil")
	}
	files, err := r.collectSegments()
	if err != nil {
		return err
	}
	for i, path := range files {
		last := i == len(files)-1
		if err := r.replaySegment(ctx, path, handler, last); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replayer) collectSegments() ([]string, error) {
	entries, err := os.ReadDir(r.cfg.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	prefix := r.cfg.FilePrefix + "-"
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".jnl") {
			continue
		}
		files = append(files, filepath.Join(r.cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (r *Replayer) replaySegment(ctx context.Context, path string, handler Handler, last bool) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{
		DisableChecksum: r.cfg.DisableChecksum,
		MaxPayloadSize:  r.cfg.MaxPayloadSize,
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, payload, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if last && tornTail(err) {
				logs.Infof("journal replay: torn tail in %s, stopping: %v", path, err)
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}

		if err := r.dispatch(ctx, header, payload, handler); err != nil {
			return err
		}
	}
}

func (r *Replayer) dispatch(ctx context.Context, header schema.EventHeader, payload []byte, handler Handler) error {
	switch header.Type {
	case schema.EventOrderJournal:
		oj, err := codec.DecodeOrderJournal(payload)
		if err != nil {
			return err
		}
		return handler.OnOrderJournal(ctx, oj)
	case schema.EventFillJournal:
		fj, err := codec.DecodeFillJournal(payload)
		if err != nil {
			return err
		}
		return handler.OnFillJournal(ctx, fj)
	default:
		logs.Infof("journal replay: skipping unknown event type %d seq %d", header.Type, header.Seq)
		return nil
	}
}

func tornTail(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrChecksumMismatch)
}
