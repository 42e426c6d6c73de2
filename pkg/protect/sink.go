package protect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sink receives retrieved clips for downstream delivery.
type Sink interface {
	Store(ctx context.Context, clip *Clip) error
}

// DirSink writes clip bytes into a directory. Clips that resolved to a
// signed URL instead of bytes are recorded as a .url pointer file so
// downstream consumers can fetch them before the link expires.
type DirSink struct {
	Dir string
}

// Store implements Sink.
func (s DirSink) Store(ctx context.Context, clip *Clip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0750); err != nil {
		return fmt.Errorf("creating clip directory: %w", err)
	}

	// The suggested filename comes from the controller; strip any path
	// components so it cannot escape the sink directory.
	name := filepath.Base(clip.FileName)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		name = ""
	}
	if name == "" {
		name = fmt.Sprintf("%s-%d.mp4", sanitizeName(clip.DeviceName), clip.RetrievedAt.Unix())
	}

	if len(clip.Bytes) > 0 {
		path := filepath.Join(s.Dir, name)
		if err := os.WriteFile(path, clip.Bytes, 0640); err != nil {
			return fmt.Errorf("writing clip %s: %w", name, err)
		}
		return nil
	}

	path := filepath.Join(s.Dir, name+".url")
	if err := os.WriteFile(path, []byte(clip.URL+"\n"), 0640); err != nil {
		return fmt.Errorf("writing clip link %s: %w", name, err)
	}
	return nil
}

func sanitizeName(name string) string {
	if name == "" {
		return "clip"
	}
	replacer := strings.NewReplacer(" ", "-", "/", "-", "\\", "-")
	return strings.ToLower(replacer.Replace(name))
}
