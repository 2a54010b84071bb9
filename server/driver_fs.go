package server

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSDriver implements Driver against the local filesystem, jailing every
// session's operations inside its own root via os.Root.
type FSDriver struct{}

// NewFSDriver creates a filesystem driver. The root directory each session
// is jailed to is supplied per-call to Open, since a session's working_dir
// is chosen by config/authentication rather than fixed at driver
// construction time.
func NewFSDriver() *FSDriver {
	return &FSDriver{}
}

// Open validates that root exists and is a directory, then returns a
// ClientContext jailed to it.
func (d *FSDriver) Open(root string) (ClientContext, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path validation failed: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", root)
	}

	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	rootHandle, err := os.OpenRoot(root)
	if err != nil {
		return nil, err
	}

	return &fsContext{rootHandle: rootHandle, rootPath: root, cwd: "/"}, nil
}

// fsContext implements ClientContext for the local filesystem. It tracks
// the current working directory and ensures every operation is jailed
// inside rootHandle.
type fsContext struct {
	rootHandle *os.Root
	rootPath   string
	cwd        string
}

func (c *fsContext) Close() error {
	return c.rootHandle.Close()
}

// resolve maps a session-relative path (absolute-in-virtual-root or
// relative-to-cwd) onto a path relative to rootHandle.
func (c *fsContext) resolve(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = filepath.Join(c.cwd, path)
	}
	path = filepath.Clean(path)
	if !strings.HasPrefix(path, "/") {
		return "", errors.New("invalid path")
	}
	if len(path) > 4096 {
		return "", errors.New("path too long")
	}
	rel := strings.TrimPrefix(path, "/")
	if rel == "" {
		rel = "."
	}
	return rel, nil
}

func (c *fsContext) ChangeDir(path string) error {
	rel, err := c.resolve(path)
	if err != nil {
		return err
	}
	info, err := c.rootHandle.Stat(rel)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("not a directory")
	}

	if !strings.HasPrefix(path, "/") {
		path = filepath.Join(c.cwd, path)
	}
	c.cwd = filepath.Clean(path)
	if !strings.HasPrefix(c.cwd, "/") {
		c.cwd = "/" + c.cwd
	}
	return nil
}

func (c *fsContext) GetWd() (string, error) {
	return c.cwd, nil
}

func (c *fsContext) MakeDir(path string) error {
	rel, err := c.resolve(path)
	if err != nil {
		return err
	}
	return c.rootHandle.Mkdir(rel, 0755)
}

func (c *fsContext) RemoveDir(path string) error {
	rel, err := c.resolve(path)
	if err != nil {
		return err
	}
	return c.rootHandle.Remove(rel)
}

func (c *fsContext) DeleteFile(path string) error {
	rel, err := c.resolve(path)
	if err != nil {
		return err
	}
	return c.rootHandle.Remove(rel)
}

func (c *fsContext) Rename(fromPath, toPath string) error {
	srcRel, err := c.resolve(fromPath)
	if err != nil {
		return err
	}
	dstRel, err := c.resolve(toPath)
	if err != nil {
		return err
	}

	srcFull := filepath.Join(c.rootPath, srcRel)
	dstFull := filepath.Join(c.rootPath, dstRel)

	realSrc, err := filepath.EvalSymlinks(srcFull)
	if err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		return errors.New("failed to resolve source path")
	}
	if !strings.HasPrefix(realSrc, c.rootPath) {
		return os.ErrPermission
	}

	dstParent := filepath.Dir(dstFull)
	if realDstParent, err := filepath.EvalSymlinks(dstParent); err == nil {
		if !strings.HasPrefix(realDstParent, c.rootPath) {
			return os.ErrPermission
		}
	}

	if err := os.Rename(srcFull, dstFull); err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		return errors.New("rename failed")
	}
	return nil
}

func (c *fsContext) ListDir(path string) ([]os.FileInfo, error) {
	rel, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := c.rootHandle.Open(rel)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	infos := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if info, err := entry.Info(); err == nil {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

func (c *fsContext) OpenFile(path string, flag int) (io.ReadWriteCloser, error) {
	rel, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	return c.rootHandle.OpenFile(rel, flag, 0644)
}

func (c *fsContext) GetFileInfo(path string) (os.FileInfo, error) {
	rel, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	return c.rootHandle.Stat(rel)
}
