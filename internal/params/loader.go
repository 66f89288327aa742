package params

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tgbatch/internal/domain"

	"gopkg.in/yaml.v3"
)

// File is the on-disk batch description. JSON files parse too since
// YAML is a superset of JSON.
type File struct {
	Operation      string         `yaml:"operation"`
	BinaryData     bool           `yaml:"binaryData"`
	ContinueOnFail *bool          `yaml:"continueOnFail,omitempty"`
	Defaults       map[string]any `yaml:"defaults,omitempty"`
	Items          []ItemSpec     `yaml:"items"`

	dir string
}

// ItemSpec is one record of a batch file.
type ItemSpec struct {
	Params map[string]any        `yaml:"params,omitempty"`
	JSON   map[string]any        `yaml:"json,omitempty"`
	Binary map[string]BinarySpec `yaml:"binary,omitempty"`
}

// BinarySpec carries attachment bytes inline (base64) or by path.
// Relative paths resolve against the batch file's directory.
type BinarySpec struct {
	Base64   string `yaml:"base64,omitempty"`
	Path     string `yaml:"path,omitempty"`
	MimeType string `yaml:"mimeType,omitempty"`
	FileName string `yaml:"fileName,omitempty"`
}

// Load reads and parses a batch file.
func Load(path string, logger *slog.Logger) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse batch file %s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	logger.Debug("loaded batch file", "path", path, "operation", f.Operation, "items", len(f.Items))
	return f, nil
}

// Parse decodes a batch description from YAML or JSON.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Operation == "" {
		f.Operation = string(domain.SendMessage)
	}
	return &f, nil
}

// Resolver returns the parameter resolver for the file's items.
func (f *File) Resolver() *Resolver {
	perItem := make([]map[string]any, len(f.Items))
	for i, it := range f.Items {
		perItem[i] = it.Params
	}
	return NewResolver(f.Defaults, perItem)
}

// InputItems converts the file items into pipeline items.
func (f *File) InputItems() []domain.InputItem {
	items := make([]domain.InputItem, len(f.Items))
	for i, in := range f.Items {
		item := domain.InputItem{JSON: in.JSON}
		if len(in.Binary) > 0 {
			item.Binary = make(map[string]domain.BinaryData, len(in.Binary))
		}
		for name, b := range in.Binary {
			bd := domain.BinaryData{MimeType: b.MimeType, FileName: b.FileName, Base64: b.Base64}
			if b.Path != "" {
				bd.Path = b.Path
				if !filepath.IsAbs(bd.Path) && f.dir != "" {
					bd.Path = filepath.Join(f.dir, bd.Path)
				}
			}
			item.Binary[name] = bd
		}
		items[i] = item
	}
	return items
}
