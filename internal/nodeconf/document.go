package nodeconf

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is an ordered mapping of top-level keys to opaque YAML values.
// Keys keep their position and comments across Set, so merging over a
// baseline only changes the entries that were explicitly set.
type Document struct {
	root *yaml.Node // DocumentNode wrapping a single MappingNode
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{root: &yaml.Node{
		Kind:    yaml.DocumentNode,
		Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
	}}
}

// Parse reads a YAML document whose top level is a mapping. Empty input
// yields an empty document.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return NewDocument(), nil
	}
	if len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse configuration: top level must be a mapping")
	}
	return &Document{root: &root}, nil
}

func (d *Document) mapping() *yaml.Node {
	return d.root.Content[0]
}

// Keys returns the top-level keys in document order.
func (d *Document) Keys() []string {
	m := d.mapping()
	keys := make([]string, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		keys = append(keys, m.Content[i].Value)
	}
	return keys
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	return d.index(key) >= 0
}

func (d *Document) index(key string) int {
	m := d.mapping()
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

// Set encodes value and stores it under key. An existing entry is replaced
// in place; a new key is appended.
func (d *Document) Set(key string, value any) error {
	var v yaml.Node
	if err := v.Encode(value); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	m := d.mapping()
	if i := d.index(key); i >= 0 {
		m.Content[i+1] = &v
		return nil
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&v,
	)
	return nil
}

// Decode decodes the value stored under key into out. It returns false when
// the key is absent.
func (d *Document) Decode(key string, out any) (bool, error) {
	i := d.index(key)
	if i < 0 {
		return false, nil
	}
	if err := d.mapping().Content[i+1].Decode(out); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Clone returns a deep copy; mutations of the copy never reach d.
func (d *Document) Clone() *Document {
	return &Document{root: cloneNode(d.root)}
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Content != nil {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}
	return &c
}

// Marshal renders the document as YAML.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(4)
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("render configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("render configuration: %w", err)
	}
	return buf.Bytes(), nil
}
