package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
)

// maxListEntries はfile_listが返すエントリ数の上限
const maxListEntries = 1000

// FileTools はワークスペース制限付きのファイル操作ツール群。
// restrictが真の場合、ワークスペース外のパスは拒否される
type FileTools struct {
	workspace string
	restrict  bool
}

// NewFileTools は新しいFileToolsを作成
func NewFileTools(workspace string, restrict bool) *FileTools {
	return &FileTools{workspace: workspace, restrict: restrict}
}

// resolve は相対パスをワークスペース基準で解決し、制限を検査する
func (f *FileTools) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path must not be empty")
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(f.workspace, resolved)
	}
	resolved = filepath.Clean(resolved)

	if f.restrict {
		rel, err := filepath.Rel(f.workspace, resolved)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("path escapes the workspace: %s", path)
		}
	}
	return resolved, nil
}

// ReadTool はファイル読み込みツールを返す
func (f *FileTools) ReadTool() tool.Tool {
	params := []tool.Parameter{
		{Name: "path", Type: tool.ParamString, Description: "File path to read", Required: true},
	}
	return tool.New("file_read", "Read the contents of a file", tool.TypeFileOperation, params,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			path, _ := args["path"].(string)
			resolved, err := f.resolve(path)
			if err != nil {
				return nil, err
			}
			content, err := os.ReadFile(resolved)
			if err != nil {
				return nil, fmt.Errorf("failed to read file: %w", err)
			}
			return string(content), nil
		})
}

// WriteTool はファイル書き込みツールを返す
func (f *FileTools) WriteTool() tool.Tool {
	params := []tool.Parameter{
		{Name: "path", Type: tool.ParamString, Description: "File path to write", Required: true},
		{Name: "content", Type: tool.ParamString, Description: "Content to write", Required: true},
	}
	return tool.New("file_write", "Write content to a file", tool.TypeFileOperation, params,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			resolved, err := f.resolve(path)
			if err != nil {
				return nil, err
			}

			// ディレクトリが存在しない場合は作成
			if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
			if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
				return nil, fmt.Errorf("failed to write file: %w", err)
			}
			return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path), nil
		})
}

// ListTool はディレクトリ一覧ツールを返す
func (f *FileTools) ListTool() tool.Tool {
	params := []tool.Parameter{
		{Name: "path", Type: tool.ParamString, Description: "Directory path to list", Required: false, Default: "."},
	}
	return tool.New("file_list", "List the entries of a directory", tool.TypeFileOperation, params,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			path, _ := args["path"].(string)
			resolved, err := f.resolve(path)
			if err != nil {
				return nil, err
			}
			entries, err := os.ReadDir(resolved)
			if err != nil {
				return nil, fmt.Errorf("failed to read directory: %w", err)
			}

			var result strings.Builder
			for i, entry := range entries {
				if i >= maxListEntries {
					result.WriteString("... (truncated, too many entries)\n")
					break
				}
				if entry.IsDir() {
					result.WriteString(entry.Name() + "/\n")
				} else {
					result.WriteString(entry.Name() + "\n")
				}
			}
			return result.String(), nil
		})
}
