// Package config 从 json/yaml/toml/ini 文件加载组件配置
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Load 读取配置文件并依次执行 Decode、SetDefaults、Validate
func Load(filename string, object any) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to read config %s", filename)
	}
	tree, err := Parse(data, filepath.Ext(filename))
	if err != nil {
		return errors.WithMessagef(err, "failed to parse config %s", filename)
	}
	return Bind(tree, object)
}

// Bind Decode 之后填充默认值并校验
func Bind(tree any, object any) error {
	if err := Decode(tree, object); err != nil {
		return errors.WithMessage(err, "Decode failed")
	}
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "SetDefaults failed")
	}
	return Validate(object)
}

// Parse 按扩展名把配置内容解析成 map[string]any
func Parse(data []byte, ext string) (map[string]any, error) {
	tree := map[string]any{}
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		if err := decoder.Decode(&tree); err != nil {
			return nil, errors.Wrap(err, "json decode failed")
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, errors.Wrap(err, "yaml decode failed")
		}
	case "toml":
		if err := toml.Unmarshal(data, &tree); err != nil {
			return nil, errors.Wrap(err, "toml decode failed")
		}
	case "ini":
		return parseIni(data)
	default:
		return nil, errors.Errorf("unsupported config format %q", ext)
	}
	return tree, nil
}

// parseIni section 名按 . 拆成嵌套层级，默认 section 的键放在根上
func parseIni(data []byte) (map[string]any, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, errors.Wrap(err, "ini decode failed")
	}
	tree := map[string]any{}
	for _, section := range file.Sections() {
		node := tree
		if name := section.Name(); name != ini.DefaultSection {
			for _, part := range strings.Split(name, ".") {
				child, ok := node[part].(map[string]any)
				if !ok {
					child = map[string]any{}
					node[part] = child
				}
				node = child
			}
		}
		for _, key := range section.Keys() {
			node[key.Name()] = key.Value()
		}
	}
	return tree, nil
}
