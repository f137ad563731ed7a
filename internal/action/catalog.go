package action

import (
	_ "embed"
	"fmt"

	"github.com/agnivade/levenshtein"
	"github.com/cloudwego/eino/schema"
	"gopkg.in/yaml.v3"
)

//go:embed actions.yaml
var catalogYAML []byte

// Param is a JSON-schema-like description of one action argument.
type Param struct {
	Type        string            `yaml:"type" json:"type"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Enum        []string          `yaml:"enum,omitempty" json:"enum,omitempty"`
	Items       *Param            `yaml:"items,omitempty" json:"items,omitempty"`
	Properties  map[string]*Param `yaml:"properties,omitempty" json:"properties,omitempty"`
	Required    []string          `yaml:"required,omitempty" json:"required,omitempty"`
}

// Definition describes one remote action.
type Definition struct {
	Name        string            `yaml:"name" json:"name"`
	Group       string            `yaml:"group" json:"group"`
	Description string            `yaml:"description" json:"description"`
	Parameters  map[string]*Param `yaml:"parameters" json:"parameters"`
	Required    []string          `yaml:"required,omitempty" json:"required,omitempty"`
}

// Catalog is the set of actions the executor may call.
type Catalog struct {
	defs   []Definition
	byName map[string]int
}

var dataTypes = map[string]schema.DataType{
	"string":  schema.String,
	"integer": schema.Integer,
	"number":  schema.Number,
	"boolean": schema.Boolean,
	"array":   schema.Array,
	"object":  schema.Object,
}

// Load parses the embedded action catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// MustLoad is Load for program initialization.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse reads a catalog document with a top-level "actions" list.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Actions []Definition `yaml:"actions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse action catalog: %w", err)
	}

	c := &Catalog{byName: make(map[string]int, len(doc.Actions))}
	for _, def := range doc.Actions {
		if def.Name == "" {
			return nil, fmt.Errorf("action catalog: entry without name")
		}
		if _, dup := c.byName[def.Name]; dup {
			return nil, fmt.Errorf("action catalog: duplicate action %q", def.Name)
		}
		if err := validateParams(def.Name, def.Parameters, def.Required); err != nil {
			return nil, err
		}
		c.byName[def.Name] = len(c.defs)
		c.defs = append(c.defs, def)
	}
	return c, nil
}

func validateParams(path string, params map[string]*Param, required []string) error {
	for _, name := range required {
		if _, ok := params[name]; !ok {
			return fmt.Errorf("action catalog: %s requires unknown parameter %q", path, name)
		}
	}
	for name, p := range params {
		if err := validateParam(path+"."+name, p); err != nil {
			return err
		}
	}
	return nil
}

func validateParam(path string, p *Param) error {
	if p == nil {
		return fmt.Errorf("action catalog: %s is empty", path)
	}
	if _, ok := dataTypes[p.Type]; !ok {
		return fmt.Errorf("action catalog: %s has unsupported type %q", path, p.Type)
	}
	if p.Type == "array" && p.Items != nil {
		if err := validateParam(path+"[]", p.Items); err != nil {
			return err
		}
	}
	return validateParams(path, p.Properties, p.Required)
}

// Len returns the number of actions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// Definitions returns the actions in catalog order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get returns the named action.
func (c *Catalog) Get(name string) (Definition, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Has reports whether name is a known action.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Suggest returns the catalog name closest to name by edit distance.
// ok is false when nothing is reasonably close.
func (c *Catalog) Suggest(name string) (suggestion string, ok bool) {
	best := -1
	for _, d := range c.defs {
		dist := levenshtein.ComputeDistance(name, d.Name)
		if best < 0 || dist < best {
			best, suggestion = dist, d.Name
		}
	}
	if best < 0 || best > len(name)/2+1 {
		return "", false
	}
	return suggestion, true
}

// ToolInfos converts the catalog into Eino tool definitions.
func (c *Catalog) ToolInfos() []*schema.ToolInfo {
	tools := make([]*schema.ToolInfo, 0, len(c.defs))
	for _, d := range c.defs {
		tools = append(tools, ToolInfo(d.Name, d.Description, d.Parameters, d.Required))
	}
	return tools
}

// ToolInfo builds one Eino tool definition from catalog-style parameters.
func ToolInfo(name, description string, params map[string]*Param, required []string) *schema.ToolInfo {
	return &schema.ToolInfo{
		Name:        name,
		Desc:        description,
		ParamsOneOf: schema.NewParamsOneOfByParams(toParameterInfos(params, required)),
	}
}

func toParameterInfos(params map[string]*Param, required []string) map[string]*schema.ParameterInfo {
	if len(params) == 0 {
		return map[string]*schema.ParameterInfo{}
	}
	req := make(map[string]bool, len(required))
	for _, r := range required {
		req[r] = true
	}
	out := make(map[string]*schema.ParameterInfo, len(params))
	for name, p := range params {
		info := toParameterInfo(p)
		info.Required = req[name]
		out[name] = info
	}
	return out
}

func toParameterInfo(p *Param) *schema.ParameterInfo {
	info := &schema.ParameterInfo{
		Type: dataTypes[p.Type],
		Desc: p.Description,
		Enum: p.Enum,
	}
	if p.Items != nil {
		info.ElemInfo = toParameterInfo(p.Items)
	}
	if len(p.Properties) > 0 {
		info.SubParams = toParameterInfos(p.Properties, p.Required)
	}
	return info
}
