package backend

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/schema"
)

// yamlCodec writes Document.Value() as human readable YAML. Every scalar
// carries an explicit tag so ints and floats survive the round trip.
type yamlCodec struct{}

func (yamlCodec) ext() string { return ".txt" }

func (yamlCodec) marshal(doc schema.Document) ([]byte, error) {
	root, err := toYAMLNode(doc.Value())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func toYAMLNode(v schema.Value) (*yaml.Node, error) {
	switch val := v.(type) {
	case schema.String:
		return scalar("!!str", string(val)), nil
	case schema.Int:
		return scalar("!!int", strconv.FormatInt(int64(val), 10)), nil
	case schema.Float:
		s, err := schema.FormatFloat(float64(val))
		if err != nil {
			return nil, err
		}
		return scalar("!!float", s), nil
	case schema.Bool:
		return scalar("!!bool", strconv.FormatBool(bool(val))), nil
	case schema.List:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		// Flow style keeps coefficient and table lists on one line.
		if isScalarList(val) {
			n.Style = yaml.FlowStyle
		}
		for i, elem := range val {
			c, err := toYAMLNode(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	case schema.Object:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range val.SortedKeys() {
			c, err := toYAMLNode(val[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			n.Content = append(n.Content, scalar("!!str", k), c)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}

func isScalarList(l schema.List) bool {
	for _, v := range l {
		switch v.(type) {
		case schema.List, schema.Object:
			return false
		}
	}
	return true
}

func (yamlCodec) unmarshal(data []byte) (schema.Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return schema.Document{}, calerr.Incompatible("text", "parse: %v", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 {
		return schema.Document{}, calerr.Incompatible("text", "expected a single YAML document")
	}
	v, err := fromYAMLNode(root.Content[0])
	if err != nil {
		return schema.Document{}, err
	}
	obj, ok := v.(schema.Object)
	if !ok {
		return schema.Document{}, calerr.Incompatible("text", "top level is %T, not a mapping", v)
	}
	return schema.DocumentFromValue(obj)
}

func fromYAMLNode(n *yaml.Node) (schema.Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return fromYAMLScalar(n)
	case yaml.SequenceNode:
		l := make(schema.List, 0, len(n.Content))
		for i, c := range n.Content {
			v, err := fromYAMLNode(c)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			l = append(l, v)
		}
		return l, nil
	case yaml.MappingNode:
		obj := make(schema.Object, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i].Value
			if _, dup := obj[k]; dup {
				return nil, calerr.Incompatible(k, "line %d: duplicate key %q", n.Content[i].Line, k)
			}
			v, err := fromYAMLNode(n.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			obj[k] = v
		}
		return obj, nil
	default:
		return nil, calerr.Incompatible("text", "line %d: unsupported YAML node", n.Line)
	}
}

func fromYAMLScalar(n *yaml.Node) (schema.Value, error) {
	bad := func() error {
		return calerr.Incompatible("text", "line %d: bad %s %q", n.Line, n.ShortTag(), n.Value)
	}
	switch n.ShortTag() {
	case "!!str":
		return schema.String(n.Value), nil
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return nil, bad()
		}
		return schema.Int(i), nil
	case "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, bad()
		}
		return schema.Float(f), nil
	case "!!bool":
		b, err := strconv.ParseBool(n.Value)
		if err != nil {
			return nil, bad()
		}
		return schema.Bool(b), nil
	default:
		return nil, calerr.Incompatible("text", "line %d: unsupported scalar %s", n.Line, n.ShortTag())
	}
}
