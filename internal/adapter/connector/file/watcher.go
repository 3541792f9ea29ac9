// Package file file: internal/adapter/connector/file/watcher.go
package file

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StartWatcher 启动文件系统监视器, 表文件被外部改动后 (防抖 2 秒)
// 以根目录相对路径回调 onChange。调用方通常在回调里失效模式缓存。
func (c *Connector) StartWatcher(onChange func(relPath string)) error {
	if c.watcher != nil {
		return fmt.Errorf("文件连接器 '%s' 的监视器已经启动", c.id)
	}
	log.Printf("[FileConnector] 尝试启动文件监视器于目录: %s", c.root)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建 fsnotify watcher 失败: %w", err)
	}
	c.watcher = watcher
	c.onChange = onChange

	go func() {
		log.Printf("信息: [FileConnector] 文件监视 goroutine 已启动。")
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					log.Printf("警告: [FileConnector] 文件监视器事件通道已关闭。")
					return
				}
				c.handleFsEvent(event, watcher)
			case errWatch, ok := <-watcher.Errors:
				if !ok {
					log.Printf("警告: [FileConnector] 文件监视器错误通道已关闭。")
					return
				}
				log.Printf("错误: [FileConnector] 文件监视器报告错误: %v", errWatch)
			}
		}
	}()

	if err := watcher.Add(c.root); err != nil {
		return fmt.Errorf("添加根目录 '%s' 到监视器失败: %w", c.root, err)
	}

	// 已存在的子目录也纳入监视
	entries, err := os.ReadDir(c.root)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				sub := filepath.Join(c.root, e.Name())
				if errAdd := watcher.Add(sub); errAdd != nil {
					log.Printf("警告: [FileConnector] 添加子目录 '%s' 到监视器失败: %v", sub, errAdd)
				}
			}
		}
	}
	return nil
}

// Close 停止监视器并清空未触发的防抖定时器。
func (c *Connector) Close() error {
	c.eventTimersMu.Lock()
	for path, timer := range c.eventTimers {
		timer.Stop()
		delete(c.eventTimers, path)
	}
	c.eventTimersMu.Unlock()

	if c.watcher != nil {
		err := c.watcher.Close()
		c.watcher = nil
		return err
	}
	return nil
}

// handleFsEvent 处理单个文件系统事件。
func (c *Connector) handleFsEvent(event fsnotify.Event, watcher *fsnotify.Watcher) {
	cleanPath := filepath.Clean(event.Name)

	// 新建的子目录纳入监视
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
			if err := watcher.Add(cleanPath); err == nil {
				log.Printf("信息: [FileConnector FS Event] 新目录 '%s' 已成功添加到监视器。", cleanPath)
			}
			return
		}
	}

	// 只关心表文件本身, 自己重写时产生的 .tmp 文件不算
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".ndjson" {
		return
	}

	c.eventTimersMu.Lock()
	defer c.eventTimersMu.Unlock()
	if timer, exists := c.eventTimers[cleanPath]; exists {
		timer.Stop()
	}
	c.eventTimers[cleanPath] = time.AfterFunc(debounceDuration, func() {
		c.processDebouncedEvent(cleanPath)
		c.eventTimersMu.Lock()
		delete(c.eventTimers, cleanPath)
		c.eventTimersMu.Unlock()
	})
}

// processDebouncedEvent 在防抖后把变更报告给上层。
func (c *Connector) processDebouncedEvent(path string) {
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return
	}
	log.Printf("信息: [FileConnector Debounced Event] 表文件 '%s' 发生变更。", rel)
	if c.onChange != nil {
		c.onChange(filepath.ToSlash(rel))
	}
}
