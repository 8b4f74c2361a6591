// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netwatch

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

const fileWatchMask = unix.IN_CLOSE_WRITE | unix.IN_MOVED_TO | unix.IN_MOVED_FROM |
	unix.IN_CREATE | unix.IN_DELETE

// pollMillis is how often the watch loop checks for cancellation.
const pollMillis = 100

// directoryRetryInterval is how often Run looks for a missing
// directory.
const directoryRetryInterval = 2 * time.Second

// FileSource watches a file holding the network name.
type FileSource struct {
	path          string
	logger        *slog.Logger
	retryInterval time.Duration
}

// NewFileSource returns a source for path. Neither the file nor its
// directory need exist; a missing directory reads as disconnected until
// it appears.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:          path,
		logger:        logger.With("component", "netwatch", "source", "file"),
		retryInterval: directoryRetryInterval,
	}
}

// Run installs an inotify watch on the file's directory, reads the
// file, and re-reads it whenever an event names it. The watch goes in
// before the first read so a write in between is not missed. While the
// directory is missing, or after it is removed, Run reports
// disconnected and retries the watch until ctx is done.
func (s *FileSource) Run(ctx context.Context, emit func(Observation)) error {
	directory, filename := filepath.Split(s.path)
	if directory == "" {
		directory = "."
	}

	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return fmt.Errorf("netwatch: inotify_init1: %w", err)
	}
	defer unix.Close(fd)

	filter := &changeFilter{emit: emit}
	for {
		watching, err := s.addWatch(ctx, fd, directory, filter)
		if err != nil || !watching {
			return err
		}
		filter.offer(s.read())

		removed, err := s.follow(ctx, fd, filename, filter)
		if err != nil || !removed {
			return err
		}
		s.logger.Warn("network file directory removed", "directory", directory)
		filter.offer(Disconnected)
	}
}

// addWatch adds the directory watch, waiting for the directory to
// appear if it is missing. It returns false without error when ctx is
// done first.
func (s *FileSource) addWatch(ctx context.Context, fd int, directory string, filter *changeFilter) (bool, error) {
	warned := false
	for {
		_, err := unix.InotifyAddWatch(fd, directory, fileWatchMask)
		if err == nil {
			if warned {
				s.logger.Info("network file directory appeared", "directory", directory)
			}
			return true, nil
		}
		if err != unix.ENOENT && err != unix.ENOTDIR {
			return false, fmt.Errorf("netwatch: inotify_add_watch on %s: %w", directory, err)
		}
		if !warned {
			s.logger.Warn("network file directory missing, retrying", "directory", directory, "retry_interval", s.retryInterval)
			warned = true
		}
		filter.offer(Disconnected)

		timer := time.NewTimer(s.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, nil
		case <-timer.C:
		}
	}
}

// follow reads inotify events until ctx is done or the watch is
// removed. It returns true when the kernel dropped the watch because
// the directory went away.
func (s *FileSource) follow(ctx context.Context, fd int, filename string, filter *changeFilter) (bool, error) {
	buffer := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return false, nil
		}

		pollDescriptors := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		count, err := unix.Poll(pollDescriptors, pollMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return false, fmt.Errorf("netwatch: poll: %w", err)
		}
		if count == 0 {
			continue
		}

		bytesRead, err := unix.Read(fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return false, fmt.Errorf("netwatch: reading inotify events: %w", err)
		}

		named, ignored := scanEvents(buffer[:bytesRead], filename)
		if ignored {
			return true, nil
		}
		if named {
			filter.offer(s.read())
		}
	}
}

func (s *FileSource) read() Observation {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("reading network file", "path", s.path, "error", err)
		}
		return Disconnected
	}
	return parseNetwork(string(data))
}

// scanEvents reports whether any raw inotify event in buffer names
// target, and whether the watch was removed (IN_IGNORED). Event layout
// per inotify(7): wd, mask, cookie, len (4 bytes each), then len bytes
// of null-padded name.
func scanEvents(buffer []byte, target string) (named, ignored bool) {
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		mask := binary.NativeEndian.Uint32(buffer[offset+4 : offset+8])
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		eventSize := unix.SizeofInotifyEvent + nameLength
		if offset+eventSize > len(buffer) {
			break
		}
		if mask&unix.IN_IGNORED != 0 {
			ignored = true
		}
		if nameLength > 0 {
			name := nullTerminated(buffer[offset+unix.SizeofInotifyEvent : offset+eventSize])
			if name == target {
				named = true
			}
		}
		offset += eventSize
	}
	return named, ignored
}

func nullTerminated(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}
