package scraper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// NodeKind tags the variant held by a Node
type NodeKind int

const (
	NullNode NodeKind = iota
	BoolNode
	NumberNode
	StringNode
	ListNode
	MapNode
)

func (k NodeKind) String() string {
	switch k {
	case NullNode:
		return "null"
	case BoolNode:
		return "bool"
	case NumberNode:
		return "number"
	case StringNode:
		return "string"
	case ListNode:
		return "list"
	case MapNode:
		return "map"
	}
	return "unknown"
}

// Node is one value of an embedded data document. Map keys keep
// their document order so traversal is deterministic.
type Node struct {
	Kind   NodeKind
	Bool   bool
	Number json.Number
	Text   string
	Items  []*Node
	Keys   []string
	Fields map[string]*Node
}

// Get returns the value stored under key, or nil when n is not a map or lacks the key
func (n *Node) Get(key string) *Node {
	if n == nil || n.Kind != MapNode {
		return nil
	}
	return n.Fields[key]
}

// Has reports whether n is a map carrying key
func (n *Node) Has(key string) bool {
	return n.Get(key) != nil
}

// IsMap reports whether n is a non-nil map node
func (n *Node) IsMap() bool {
	return n != nil && n.Kind == MapNode
}

// IsList reports whether n is a non-nil list node
func (n *Node) IsList() bool {
	return n != nil && n.Kind == ListNode
}

// IsScalar reports whether n holds a bool, number or string
func (n *Node) IsScalar() bool {
	return n != nil && (n.Kind == BoolNode || n.Kind == NumberNode || n.Kind == StringNode)
}

// TextValue returns the trimmed text of a string node
func (n *Node) TextValue() (string, bool) {
	if n == nil || n.Kind != StringNode {
		return "", false
	}
	s := strings.TrimSpace(n.Text)
	return s, s != ""
}

// IsTrue reports whether n is the boolean true
func (n *Node) IsTrue() bool {
	return n != nil && n.Kind == BoolNode && n.Bool
}

// IsFalse reports whether n is the boolean false
func (n *Node) IsFalse() bool {
	return n != nil && n.Kind == BoolNode && !n.Bool
}

// Present reports whether n holds a non-empty value: a non-blank string,
// a non-zero number, true, or a non-empty container.
func (n *Node) Present() bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case BoolNode:
		return n.Bool
	case NumberNode:
		f, err := n.Number.Float64()
		return err == nil && f != 0
	case StringNode:
		return strings.TrimSpace(n.Text) != ""
	case ListNode:
		return len(n.Items) > 0
	case MapNode:
		return len(n.Keys) > 0
	}
	return false
}

// Walk visits n and every descendant depth-first in document order.
// Returning false from visit skips the children of the visited node.
func (n *Node) Walk(visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	switch n.Kind {
	case MapNode:
		for _, key := range n.Keys {
			n.Fields[key].Walk(visit)
		}
	case ListNode:
		for _, item := range n.Items {
			item.Walk(visit)
		}
	}
}

// ParseError describes an embedded data document that could not be read
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse embedded data: %v (near %q)", e.Err, e.Snippet)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const snippetLength = 200

// ParseDocument reads an embedded data document. When the raw text does not
// parse, the span between the first '{' and the last '}' is tried, then the
// same span through a lenient JSON5 reader.
func ParseDocument(raw string) (*Node, error) {
	root, err := decodeDocument(raw)
	if err == nil {
		return root, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, &ParseError{Snippet: snippet(raw), Err: err}
	}
	candidate := raw[start : end+1]

	if root, recoverErr := decodeDocument(candidate); recoverErr == nil {
		return root, nil
	}

	var loose interface{}
	if looseErr := json5.Unmarshal([]byte(candidate), &loose); looseErr != nil {
		return nil, &ParseError{Snippet: snippet(raw), Err: errors.Join(err, looseErr)}
	}
	root = fromInterface(loose)
	if root.Kind != MapNode && root.Kind != ListNode {
		return nil, &ParseError{Snippet: snippet(raw), Err: errors.New("document root is not a container")}
	}
	return root, nil
}

func snippet(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > snippetLength {
		return raw[:snippetLength]
	}
	return raw
}

func decodeDocument(raw string) (*Node, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	root, err := decodeNode(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after document")
	}
	if root.Kind != MapNode && root.Kind != ListNode {
		return nil, errors.New("document root is not a container")
	}
	return root, nil
}

func decodeNode(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n := &Node{Kind: MapNode, Fields: make(map[string]*Node)}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				child, err := decodeNode(dec)
				if err != nil {
					return nil, err
				}
				if _, seen := n.Fields[key]; !seen {
					n.Keys = append(n.Keys, key)
				}
				n.Fields[key] = child
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &Node{Kind: ListNode}
			for dec.More() {
				child, err := decodeNode(dec)
				if err != nil {
					return nil, err
				}
				n.Items = append(n.Items, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return &Node{Kind: StringNode, Text: t}, nil
	case json.Number:
		return &Node{Kind: NumberNode, Number: t}, nil
	case bool:
		return &Node{Kind: BoolNode, Bool: t}, nil
	case nil:
		return &Node{Kind: NullNode}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// fromInterface converts a generically decoded value. Map key order is
// not recoverable here, so keys are sorted to stay deterministic.
func fromInterface(v interface{}) *Node {
	switch val := v.(type) {
	case map[string]interface{}:
		n := &Node{Kind: MapNode, Fields: make(map[string]*Node, len(val))}
		for key := range val {
			n.Keys = append(n.Keys, key)
		}
		sort.Strings(n.Keys)
		for _, key := range n.Keys {
			n.Fields[key] = fromInterface(val[key])
		}
		return n
	case []interface{}:
		n := &Node{Kind: ListNode, Items: make([]*Node, 0, len(val))}
		for _, item := range val {
			n.Items = append(n.Items, fromInterface(item))
		}
		return n
	case string:
		return &Node{Kind: StringNode, Text: val}
	case float64:
		return &Node{Kind: NumberNode, Number: json.Number(strconv.FormatFloat(val, 'f', -1, 64))}
	case json.Number:
		return &Node{Kind: NumberNode, Number: val}
	case bool:
		return &Node{Kind: BoolNode, Bool: val}
	}
	return &Node{Kind: NullNode}
}

// compactJSON is used in diagnostics to show a node's content
func compactJSON(n *Node) string {
	var buf bytes.Buffer
	writeNode(&buf, n)
	return snippet(buf.String())
}

func writeNode(buf *bytes.Buffer, n *Node) {
	if n == nil {
		buf.WriteString("null")
		return
	}
	switch n.Kind {
	case NullNode:
		buf.WriteString("null")
	case BoolNode:
		buf.WriteString(strconv.FormatBool(n.Bool))
	case NumberNode:
		buf.WriteString(n.Number.String())
	case StringNode:
		buf.WriteString(strconv.Quote(n.Text))
	case ListNode:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeNode(buf, item)
		}
		buf.WriteByte(']')
	case MapNode:
		buf.WriteByte('{')
		for i, key := range n.Keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(key))
			buf.WriteByte(':')
			writeNode(buf, n.Fields[key])
		}
		buf.WriteByte('}')
	}
}
