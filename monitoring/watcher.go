package monitoring

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const changeOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// ArtifactWatcher 监控模型文件目录
// 服务进程内模型不会重新加载，文件变化只记录告警，需要重启服务才能生效
type ArtifactWatcher struct {
	dir      string
	files    map[string]struct{}
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	onChange func(file string)
}

// NewArtifactWatcher 创建文件监控，只关注files中列出的文件名
func NewArtifactWatcher(dir string, files []string, logger *zap.Logger, onChange func(file string)) (*ArtifactWatcher, error) {
	if len(files) == 0 {
		return nil, errors.New("no artifact files to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	known := make(map[string]struct{}, len(files))
	for _, name := range files {
		known[name] = struct{}{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactWatcher{
		dir:      dir,
		files:    known,
		watcher:  watcher,
		logger:   logger,
		onChange: onChange,
	}, nil
}

// Run 处理文件事件，直到ctx取消或监控被关闭
func (w *ArtifactWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("artifact watcher error", zap.Error(err))
		}
	}
}

func (w *ArtifactWatcher) handle(event fsnotify.Event) {
	if event.Op&changeOps == 0 {
		return
	}
	name := filepath.Base(event.Name)
	if _, ok := w.files[name]; !ok {
		return
	}
	w.logger.Warn("artifact changed on disk, restart required to serve it",
		zap.String("file", name),
		zap.String("dir", w.dir),
		zap.String("op", event.Op.String()),
	)
	if w.onChange != nil {
		w.onChange(name)
	}
}

// Close 停止监控
func (w *ArtifactWatcher) Close() error {
	return w.watcher.Close()
}
