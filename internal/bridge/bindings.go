package bridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/1ureka/tangysync/internal/util"
)

// LogBinding only logs what would be applied. It is always available.
func LogBinding(feature Feature) Binding {
	return Binding{
		Name: "log",
		Invoke: func(_ context.Context, arg string) error {
			util.LogInfo("apply %s: %d bytes (%s)", feature, len(arg), util.Preview(arg, 24))
			return nil
		},
	}
}

// DirBinding writes each applied value to dir/<feature>.txt for manual
// import. Its probe fails when dir cannot be created or written.
func DirBinding(dir string, feature Feature) Binding {
	path := filepath.Join(dir, fileName(feature))
	return Binding{
		Name: "dir",
		Probe: func(context.Context) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			f, err := os.CreateTemp(dir, ".probe-*")
			if err != nil {
				return err
			}
			f.Close()
			return os.Remove(f.Name())
		},
		Invoke: func(_ context.Context, arg string) error {
			if err := os.WriteFile(path, []byte(arg), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			return nil
		},
	}
}

func fileName(f Feature) string {
	return strings.NewReplacer("+", "plus").Replace(string(f)) + ".txt"
}
