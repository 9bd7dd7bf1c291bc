package backend

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/schema"
)

// xmlCodec writes the value tree as typed elements:
//
//	<calibtic format="1" kind="HICANNCollection" version="2">
//	  <meta><str key="author">alice</str>...</meta>
//	  <body><float key="speedup">10000.0</float>...</body>
//	</calibtic>
type xmlCodec struct{}

type xmlDataset struct {
	XMLName xml.Name `xml:"calibtic"`
	Format  int      `xml:"format,attr"`
	Kind    string   `xml:"kind,attr"`
	Version int      `xml:"version,attr"`
	Meta    xmlNode  `xml:"meta"`
	Body    xmlNode  `xml:"body"`
}

type xmlNode struct {
	XMLName  xml.Name
	Key      string    `xml:"key,attr,omitempty"`
	Text     string    `xml:",chardata"`
	Children []xmlNode `xml:",any"`
}

// Element names of the value types.
const (
	xmlString = "str"
	xmlInt    = "int"
	xmlFloat  = "float"
	xmlBool   = "bool"
	xmlList   = "list"
	xmlObject = "obj"
)

func (xmlCodec) ext() string { return ".xml" }

func (xmlCodec) marshal(doc schema.Document) ([]byte, error) {
	meta, err := xmlChildren(doc.Meta)
	if err != nil {
		return nil, fmt.Errorf("meta: %w", err)
	}
	body, err := xmlChildren(doc.Body)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	ds := xmlDataset{
		Format:  doc.Format,
		Kind:    doc.Kind,
		Version: doc.Version,
		Meta:    xmlNode{Children: meta},
		Body:    xmlNode{Children: body},
	}
	out, err := xml.MarshalIndent(ds, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

func xmlChildren(obj schema.Object) ([]xmlNode, error) {
	nodes := make([]xmlNode, 0, len(obj))
	for _, k := range obj.SortedKeys() {
		n, err := toXMLNode(obj[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		n.Key = k
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func toXMLNode(v schema.Value) (xmlNode, error) {
	leaf := func(name, text string) xmlNode {
		return xmlNode{XMLName: xml.Name{Local: name}, Text: text}
	}
	switch val := v.(type) {
	case schema.String:
		return leaf(xmlString, string(val)), nil
	case schema.Int:
		return leaf(xmlInt, strconv.FormatInt(int64(val), 10)), nil
	case schema.Float:
		s, err := schema.FormatFloat(float64(val))
		if err != nil {
			return xmlNode{}, err
		}
		return leaf(xmlFloat, s), nil
	case schema.Bool:
		return leaf(xmlBool, strconv.FormatBool(bool(val))), nil
	case schema.List:
		n := xmlNode{XMLName: xml.Name{Local: xmlList}, Children: make([]xmlNode, 0, len(val))}
		for i, elem := range val {
			c, err := toXMLNode(elem)
			if err != nil {
				return xmlNode{}, fmt.Errorf("[%d]: %w", i, err)
			}
			n.Children = append(n.Children, c)
		}
		return n, nil
	case schema.Object:
		children, err := xmlChildren(val)
		if err != nil {
			return xmlNode{}, err
		}
		return xmlNode{XMLName: xml.Name{Local: xmlObject}, Children: children}, nil
	default:
		return xmlNode{}, fmt.Errorf("unsupported value %T", v)
	}
}

func (xmlCodec) unmarshal(data []byte) (schema.Document, error) {
	var ds xmlDataset
	if err := xml.Unmarshal(data, &ds); err != nil {
		return schema.Document{}, calerr.Incompatible("xml", "parse: %v", err)
	}
	if ds.Format > schema.FormatVersion {
		return schema.Document{}, calerr.Incompatible("format",
			"dataset format %d is newer than supported %d", ds.Format, schema.FormatVersion)
	}
	meta, err := fromXMLChildren(ds.Meta.Children)
	if err != nil {
		return schema.Document{}, fmt.Errorf("meta: %w", err)
	}
	body, err := fromXMLChildren(ds.Body.Children)
	if err != nil {
		return schema.Document{}, fmt.Errorf("body: %w", err)
	}
	return schema.Document{Format: ds.Format, Kind: ds.Kind, Version: ds.Version, Meta: meta, Body: body}, nil
}

func fromXMLChildren(nodes []xmlNode) (schema.Object, error) {
	obj := make(schema.Object, len(nodes))
	for _, n := range nodes {
		if n.Key == "" {
			return nil, calerr.Incompatible("xml", "<%s> without key inside object", n.XMLName.Local)
		}
		if _, dup := obj[n.Key]; dup {
			return nil, calerr.Incompatible(n.Key, "duplicate key %q", n.Key)
		}
		v, err := fromXMLNode(n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.Key, err)
		}
		obj[n.Key] = v
	}
	return obj, nil
}

func fromXMLNode(n xmlNode) (schema.Value, error) {
	text := n.Text
	switch n.XMLName.Local {
	case xmlString:
		return schema.String(text), nil
	case xmlInt:
		i, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, calerr.Incompatible("xml", "bad int %q", text)
		}
		return schema.Int(i), nil
	case xmlFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, calerr.Incompatible("xml", "bad float %q", text)
		}
		return schema.Float(f), nil
	case xmlBool:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, calerr.Incompatible("xml", "bad bool %q", text)
		}
		return schema.Bool(b), nil
	case xmlList:
		l := make(schema.List, 0, len(n.Children))
		for i, c := range n.Children {
			v, err := fromXMLNode(c)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			l = append(l, v)
		}
		return l, nil
	case xmlObject:
		return fromXMLChildren(n.Children)
	default:
		return nil, calerr.Incompatible("xml", "unknown element <%s>", n.XMLName.Local)
	}
}
