package builtin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wardlow/reeve-agent/internal/tool"
)

// readLimit bounds how much of a file the read op returns.
const readLimit = 50 * 1024

// FileTool performs workspace-rooted file operations. Input is a map
// with "op" (scan, read, write, delete, duplicates), "path", and for
// write a "content" key. Paths resolve inside the workspace; escapes
// are rejected.
type FileTool struct {
	workspace string
}

// NewFileTool creates the file tool rooted at workspace.
func NewFileTool(workspace string) *FileTool {
	return &FileTool{workspace: workspace}
}

// Invoke implements tool.Tool.
func (ft *FileTool) Invoke(_ context.Context, input any, _ tool.Context) tool.Result {
	if ft.workspace == "" {
		return tool.Result{Success: false, Error: "file workspace not configured"}
	}

	op, path, content, err := decodeFileInput(input)
	if err != nil {
		return tool.Result{Success: false, Error: err.Error()}
	}

	abs, err := ft.resolve(path)
	if err != nil {
		return tool.Result{Success: false, Error: err.Error()}
	}

	switch op {
	case "scan", "list":
		return ft.scan(abs)
	case "read":
		return ft.read(abs, path)
	case "write":
		return ft.write(abs, path, content)
	case "delete":
		return ft.delete(abs, path)
	case "duplicates":
		return ft.duplicates(abs)
	default:
		return tool.Result{Success: false, Error: "unknown file operation: " + op}
	}
}

func decodeFileInput(input any) (op, path, content string, err error) {
	m, ok := input.(map[string]any)
	if !ok {
		return "", "", "", fmt.Errorf("file tool expects {op, path} input")
	}
	op, _ = m["op"].(string)
	path, _ = m["path"].(string)
	content, _ = m["content"].(string)
	if op == "" {
		return "", "", "", fmt.Errorf("file operation missing op")
	}
	if path == "" {
		path = "."
	}
	return op, path, content, nil
}

// resolve maps a request path into the workspace. Absolute paths are
// treated as workspace-relative by stripping the leading separator;
// anything that still climbs out is rejected.
func (ft *FileTool) resolve(path string) (string, error) {
	root, err := filepath.Abs(ft.workspace)
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}

	p := strings.TrimPrefix(path, "/")
	abs := filepath.Clean(filepath.Join(root, p))

	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", path)
	}
	return abs, nil
}

type fileEntry struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	IsDir bool   `json:"is_dir,omitempty"`
}

func (ft *FileTool) scan(abs string) tool.Result {
	var entries []fileEntry
	err := filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == abs {
			return nil
		}
		rel, _ := filepath.Rel(abs, p)
		e := fileEntry{Path: rel, IsDir: d.IsDir()}
		if info, err := d.Info(); err == nil && !d.IsDir() {
			e.Size = info.Size()
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return tool.Result{Success: false, Error: fmt.Sprintf("scan failed: %v", err)}
	}
	if entries == nil {
		entries = []fileEntry{}
	}
	return tool.Result{Success: true, Data: map[string]any{"op": "scan", "count": len(entries), "entries": entries}}
}

func (ft *FileTool) read(abs, path string) tool.Result {
	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return tool.Result{Success: false, Error: "file not found: " + path}
		}
		return tool.Result{Success: false, Error: fmt.Sprintf("read failed: %v", err)}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, readLimit+1))
	if err != nil {
		return tool.Result{Success: false, Error: fmt.Sprintf("read failed: %v", err)}
	}
	if len(data) > readLimit {
		data = append(data[:readLimit], []byte("\n[truncated]")...)
	}
	return tool.Result{Success: true, Data: string(data)}
}

func (ft *FileTool) write(abs, path, content string) tool.Result {
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return tool.Result{Success: false, Error: fmt.Sprintf("write failed: %v", err)}
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return tool.Result{Success: false, Error: fmt.Sprintf("write failed: %v", err)}
	}
	return tool.Result{Success: true, Data: fmt.Sprintf("wrote %d bytes to %s", len(content), path)}
}

func (ft *FileTool) delete(abs, path string) tool.Result {
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return tool.Result{Success: false, Error: "file not found: " + path}
		}
		return tool.Result{Success: false, Error: fmt.Sprintf("delete failed: %v", err)}
	}
	return tool.Result{Success: true, Data: "deleted " + path}
}

// duplicates groups regular files by content hash and reports groups
// with more than one member. Size is checked first so unique-size files
// are never read.
func (ft *FileTool) duplicates(abs string) tool.Result {
	bySize := map[int64][]string{}
	err := filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		bySize[info.Size()] = append(bySize[info.Size()], p)
		return nil
	})
	if err != nil {
		return tool.Result{Success: false, Error: fmt.Sprintf("duplicate scan failed: %v", err)}
	}

	byHash := map[string][]string{}
	for _, paths := range bySize {
		if len(paths) < 2 {
			continue
		}
		for _, p := range paths {
			h, err := hashFile(p)
			if err != nil {
				continue
			}
			rel, _ := filepath.Rel(abs, p)
			byHash[h] = append(byHash[h], rel)
		}
	}

	var groups [][]string
	for _, paths := range byHash {
		if len(paths) > 1 {
			sort.Strings(paths)
			groups = append(groups, paths)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	if groups == nil {
		groups = [][]string{}
	}
	return tool.Result{Success: true, Data: map[string]any{"op": "duplicates", "groups": groups}}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
