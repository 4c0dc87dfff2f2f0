package semantic

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest 语义索引的构建信息，与向量库放在一起
type Manifest struct {
	NextSeq     int64     `json:"next_seq"`
	Chunks      int       `json:"chunks"`
	BuiltAt     time.Time `json:"built_at"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// ManifestFile 读写 manifest.json；Path 为空时只保存在内存中
type ManifestFile struct {
	Path string

	mem *Manifest
}

// ManifestPathFor 索引目录旁边的 manifest 文件路径
func ManifestPathFor(indexPath string) string {
	if indexPath == "" {
		return ""
	}
	clean := filepath.Clean(indexPath)
	return filepath.Join(filepath.Dir(clean), filepath.Base(clean)+".manifest.json")
}

func NewManifestFile(path string) *ManifestFile {
	return &ManifestFile{Path: path}
}

// Load 文件不存在时返回 nil, nil
func (f *ManifestFile) Load() (*Manifest, error) {
	if f.Path == "" {
		if f.mem == nil {
			return nil, nil
		}
		m := *f.mem
		return &m, nil
	}
	bs, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(bs, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", f.Path, err)
	}
	return &m, nil
}

// Save 先写临时文件再 rename
func (f *ManifestFile) Save(m Manifest) error {
	if f.Path == "" {
		f.mem = &m
		return nil
	}
	bs, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, bs, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}
