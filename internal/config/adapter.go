// Package config turns potential definition files into the ordered
// parameter and region pairs the core consumes, and reads service settings
// from the environment.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/potential/internal/fault"
	"github.com/danielpatrickdp/potential/internal/params"
	"github.com/danielpatrickdp/potential/internal/potential"
)

// Section names shared by every format.
const (
	SectionParameters = "parameters"
	SectionRegions    = "regions"
)

// #region format
// Format identifies a definition file syntax.
type Format string

const (
	FormatINI  Format = "ini"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cfg", ".ini":
		return FormatINI, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fault.Config(fmt.Sprintf("unsupported definition file %q", path), nil)
	}
}

// #endregion format

// #region load
// Load reads a definition file. The definition is named after the file
// unless the file names itself.
func Load(path string) (potential.Definition, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return potential.Definition{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return potential.Definition{}, fault.Config("read definition", fmt.Errorf("read %s: %w", path, err))
	}
	def, err := Parse(format, data)
	if err != nil {
		return potential.Definition{}, err
	}
	if def.Name == "" {
		base := filepath.Base(path)
		def.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return def, nil
}

// Parse decodes an in-memory definition.
func Parse(format Format, data []byte) (potential.Definition, error) {
	switch format {
	case FormatINI:
		return parseINI(data)
	case FormatYAML:
		return parseYAML(data)
	case FormatJSON:
		return parseJSON(data)
	default:
		return potential.Definition{}, fault.Config(fmt.Sprintf("unsupported format %q", format), nil)
	}
}

// #endregion load

// #region ini
// iniOptions follow ConfigParser: indented continuation lines, "=" or ":"
// delimiters, lower-cased option names and no inline comments. Shadows and
// non-unique sections are loaded so duplicates can be rejected afterwards.
var iniOptions = ini.LoadOptions{
	AllowPythonMultilineValues: true,
	InsensitiveKeys:            true,
	IgnoreInlineComment:        true,
	AllowShadows:               true,
	AllowDuplicateShadowValues: true,
	AllowNonUniqueSections:     true,
	KeyValueDelimiters:         "=:",
}

// parseINI reads .cfg definition files: a [parameters] section of ordered
// assignments and a required [regions] section whose options are region
// specs in declaration order.
func parseINI(data []byte) (potential.Definition, error) {
	f, err := ini.LoadSources(iniOptions, data)
	if err != nil {
		if ini.IsErrDelimiterNotFound(err) {
			return potential.Definition{}, fault.Config(fmt.Sprintf("expected \"key = value\": %v", err), nil)
		}
		return potential.Definition{}, fault.Config("malformed ini definition", err)
	}

	sections := map[string]*ini.Section{}
	for _, sec := range f.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection {
			if len(sec.Keys()) > 0 {
				return potential.Definition{}, fault.Config(fmt.Sprintf("option %q outside of any section", sec.Keys()[0].Name()), nil)
			}
			continue
		}
		if _, dup := sections[name]; dup {
			return potential.Definition{}, fault.Config(fmt.Sprintf("section [%s] appears more than once", name), nil)
		}
		for _, k := range sec.Keys() {
			if len(k.ValueWithShadows()) > 1 {
				return potential.Definition{}, fault.Config(fmt.Sprintf("option %q in [%s] defined more than once", k.Name(), name), nil)
			}
		}
		sections[name] = sec
	}

	regions, ok := sections[SectionRegions]
	if !ok {
		return potential.Definition{}, fault.Config("["+SectionRegions+"] is required to define a potential", nil)
	}
	var def potential.Definition
	if ps, ok := sections[SectionParameters]; ok {
		for _, k := range ps.Keys() {
			def.Parameters = append(def.Parameters, params.Pair{Name: k.Name(), Value: k.Value()})
		}
	}
	for i, k := range regions.Keys() {
		def.Regions = append(def.Regions, potential.RawRegion{Index: i, Spec: k.Value()})
	}
	return def, nil
}

// #endregion ini

// #region yaml
// parseYAML reads a mapping with "parameters" (a mapping, order kept) and
// "regions" (a sequence of specs, or a mapping whose keys only label the
// specs), plus optional "name" and "strength".
func parseYAML(data []byte) (potential.Definition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return potential.Definition{}, fault.Config("decode yaml", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return potential.Definition{}, fault.Config("yaml definition must be a mapping", nil)
	}
	root := doc.Content[0]

	var def potential.Definition
	sawRegions := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		var err error
		switch key.Value {
		case "name":
			err = val.Decode(&def.Name)
		case "strength":
			var s float64
			if err = val.Decode(&s); err == nil {
				def.Strength = &s
			}
		case SectionParameters:
			def.Parameters, err = yamlParameters(val)
		case SectionRegions:
			sawRegions = true
			def.Regions, err = yamlRegions(val)
		}
		if err != nil {
			return potential.Definition{}, fault.Config(fmt.Sprintf("line %d: %q", key.Line, key.Value), err)
		}
	}
	if !sawRegions {
		return potential.Definition{}, fault.Config(SectionRegions+" is required to define a potential", nil)
	}
	return def, nil
}

func yamlParameters(n *yaml.Node) ([]params.Pair, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parameters must be a mapping of name to expression")
	}
	out := make([]params.Pair, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: parameter %q must be a scalar expression", v.Line, k.Value)
		}
		out = append(out, params.Pair{Name: k.Value, Value: v.Value})
	}
	return out, nil
}

func yamlRegions(n *yaml.Node) ([]potential.RawRegion, error) {
	var specs []*yaml.Node
	switch n.Kind {
	case yaml.SequenceNode:
		specs = n.Content
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			specs = append(specs, n.Content[i])
		}
	default:
		return nil, fmt.Errorf("regions must be a sequence or mapping of specs")
	}
	out := make([]potential.RawRegion, 0, len(specs))
	for i, s := range specs {
		if s.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: region spec must be a string", s.Line)
		}
		out = append(out, potential.RawRegion{Index: i, Spec: s.Value})
	}
	return out, nil
}

// #endregion yaml

// #region json
func parseJSON(data []byte) (potential.Definition, error) {
	var def potential.Definition
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return potential.Definition{}, fault.Config("decode json", err)
	}
	if def.Regions == nil {
		return potential.Definition{}, fault.Config(SectionRegions+" is required to define a potential", nil)
	}
	return def, nil
}

// #endregion json
