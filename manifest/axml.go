/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

package manifest

import (
	"encoding/binary"
	"fmt"
)

// Binary-XML chunk type tags (see the AXML format used by compiled
// AndroidManifest.xml: a ResChunk_header stream of string-pool, resource-id
// map, and XML node chunks).
const (
	chunkStringPool  = 0x0001
	chunkXMLResource = 0x0003
	chunkResourceIDs = 0x0180
	chunkNsStart     = 0x0100
	chunkNsEnd       = 0x0101
	chunkTagStart    = 0x0102
	chunkTagEnd      = 0x0103
	chunkCData       = 0x0104
)

// Node is one element of the decoded AXML tree.
type Node struct {
	Element  string
	Attrs    map[string]string
	Children []*Node
	Text     string
}

// Attr looks up an attribute by its bare name, trying the "android:"
// prefixed form when the bare form is absent (manifests encode nearly all
// attributes in the android: namespace, but the namespace prefix is not
// always what callers spell).
func (n *Node) Attr(name string) (string, bool) {
	if v, ok := n.Attrs[name]; ok {
		return v, ok
	}
	v, ok := n.Attrs["android:"+name]
	return v, ok
}

// FindAll returns every descendant node (including n itself) whose Element
// equals tag, in document order.
func (n *Node) FindAll(tag string) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		if cur.Element == tag {
			out = append(out, cur)
		}
		for _, c := range cur.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

type chunkHeader struct {
	Type      uint16
	HeaderLen uint16
	Size      uint32
}

func readChunkHeader(data []byte) (chunkHeader, error) {
	if len(data) < 8 {
		return chunkHeader{}, fmt.Errorf("manifest: chunk header truncated")
	}
	return chunkHeader{
		Type:      binary.LittleEndian.Uint16(data[0:2]),
		HeaderLen: binary.LittleEndian.Uint16(data[2:4]),
		Size:      binary.LittleEndian.Uint32(data[4:8]),
	}, nil
}

// DecodeAXML parses one compiled binary-XML document (AndroidManifest.xml's
// on-disk form) into a Node tree rooted at the document's single top-level
// element.
func DecodeAXML(data []byte) (*Node, error) {
	top, err := readChunkHeader(data)
	if err != nil {
		return nil, err
	}
	if top.Type != chunkXMLResource {
		return nil, fmt.Errorf("manifest: unexpected top-level chunk type 0x%04x", top.Type)
	}

	var pool stringPool
	var resourceIDs []uint32
	var root *Node
	var stack []*Node

	pos := int(top.HeaderLen)
	end := len(data)
	if int(top.Size) < end {
		end = int(top.Size)
	}

	for pos < end {
		ch, err := readChunkHeader(data[pos:])
		if err != nil {
			return nil, err
		}
		if ch.Size == 0 || pos+int(ch.Size) > len(data) {
			return nil, fmt.Errorf("manifest: chunk at offset %d overruns buffer", pos)
		}
		body := data[pos+int(ch.HeaderLen) : pos+int(ch.Size)]

		switch ch.Type {
		case chunkStringPool:
			pool, err = parseStringPool(data[pos+8 : pos+int(ch.Size)])
		case chunkResourceIDs:
			resourceIDs, err = parseResourceIDs(body)
		case chunkNsStart, chunkNsEnd:
			// Namespace declarations carry no structural information this
			// decoder needs; attributes are resolved by string-pool text,
			// not namespace URI.
		case chunkTagStart:
			var node *Node
			node, err = parseTagStart(body, pool, resourceIDs)
			if err == nil {
				if root == nil {
					root = node
				}
				if len(stack) > 0 {
					parent := stack[len(stack)-1]
					parent.Children = append(parent.Children, node)
				}
				stack = append(stack, node)
			}
		case chunkTagEnd:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case chunkCData:
			var text string
			text, err = parseCData(body, pool)
			if err == nil && len(stack) > 0 {
				stack[len(stack)-1].Text += text
			}
		default:
			// Unknown chunk kinds are skipped; the manifest format has
			// tolerated forward-unknown chunks since its introduction.
		}
		if err != nil {
			return nil, fmt.Errorf("manifest: chunk 0x%04x at offset %d: %w", ch.Type, pos, err)
		}
		pos += int(ch.Size)
	}

	if root == nil {
		return nil, fmt.Errorf("manifest: no root element found")
	}
	return root, nil
}

func parseResourceIDs(body []byte) ([]uint32, error) {
	if len(body)%4 != 0 {
		return nil, fmt.Errorf("resource id chunk not a multiple of 4 bytes")
	}
	out := make([]uint32, len(body)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(body[i*4:])
	}
	return out, nil
}

// Resource value type tags (android.util.TypedValue).
const (
	typeString    = 0x03
	typeIntDec    = 0x10
	typeIntHex    = 0x11
	typeIntBool   = 0x12
	typeReference = 0x01
)

func parseTagStart(body []byte, pool stringPool, resourceIDs []uint32) (*Node, error) {
	if len(body) < 20 {
		return nil, fmt.Errorf("tag start chunk too short")
	}
	// ResXMLTree_attrExt: ns(4), name(4), attrStart(2), attrSize(2),
	// attrCount(2), idIndex(2), classIndex(2), styleIndex(2).
	nameIdx := int32(binary.LittleEndian.Uint32(body[4:8]))
	attrStart := binary.LittleEndian.Uint16(body[8:10])
	attrSize := binary.LittleEndian.Uint16(body[10:12])
	attrCount := binary.LittleEndian.Uint16(body[12:14])

	name, err := pool.Get(nameIdx)
	if err != nil {
		return nil, err
	}

	node := &Node{Element: name, Attrs: make(map[string]string)}

	cursor := int(attrStart)
	for i := uint16(0); i < attrCount; i++ {
		if cursor+int(attrSize) > len(body) {
			return nil, fmt.Errorf("attribute %d overruns tag chunk", i)
		}
		attr := body[cursor : cursor+int(attrSize)]
		attrName, attrValue, err := parseAttr(attr, pool, resourceIDs)
		if err != nil {
			return nil, err
		}
		node.Attrs[attrName] = attrValue
		cursor += int(attrSize)
	}
	return node, nil
}

func parseAttr(attr []byte, pool stringPool, resourceIDs []uint32) (string, string, error) {
	if len(attr) < 20 {
		return "", "", fmt.Errorf("attribute record too short")
	}
	nameIdx := int32(binary.LittleEndian.Uint32(attr[4:8]))
	rawValueIdx := int32(binary.LittleEndian.Uint32(attr[8:12]))
	dataType := attr[15]
	data := binary.LittleEndian.Uint32(attr[16:20])

	name, err := resolveAttrName(nameIdx, pool, resourceIDs)
	if err != nil {
		return "", "", err
	}

	var value string
	switch dataType {
	case typeString:
		value, err = pool.Get(rawValueIdx)
	case typeIntBool:
		if data != 0 {
			value = "true"
		} else {
			value = "false"
		}
	case typeIntHex:
		value = fmt.Sprintf("0x%x", data)
	case typeReference:
		value = fmt.Sprintf("@%x", data)
	default:
		value = fmt.Sprintf("%d", int32(data))
	}
	if err != nil {
		return "", "", err
	}
	return name, value, nil
}

// knownManifestAttrs maps the well-known resource IDs used by the fixed
// AndroidManifest.xml attribute set (frameworks/base's attrs_manifest.xml)
// to their android: name, for obfuscated/string-table-stripped manifests
// whose resourceIds slot still carries the numeric ID.
var knownManifestAttrs = map[uint32]string{
	0x01010003: "android:name",
	0x0101021b: "android:versionCode",
	0x0101021c: "android:versionName",
	0x0101020c: "android:minSdkVersion",
	0x01010270: "android:targetSdkVersion",
	0x01010001: "android:label",
	0x01010002: "android:icon",
	0x01010027: "android:scheme",
	0x01010028: "android:host",
	0x0101002a: "android:path",
	0x0101002b: "android:pathPrefix",
	0x0101002c: "android:pathPattern",
	0x01010006: "android:permission",
}

func resolveAttrName(nameIdx int32, pool stringPool, resourceIDs []uint32) (string, error) {
	if nameIdx >= 0 && int(nameIdx) < len(resourceIDs) {
		if known, ok := knownManifestAttrs[resourceIDs[nameIdx]]; ok {
			return known, nil
		}
	}
	name, err := pool.Get(nameIdx)
	if err != nil || name == "" {
		return "", fmt.Errorf("manifest: cannot resolve attribute name at index %d", nameIdx)
	}
	return name, nil
}

func parseCData(body []byte, pool stringPool) (string, error) {
	if len(body) < 4 {
		return "", fmt.Errorf("cdata chunk too short")
	}
	idx := int32(binary.LittleEndian.Uint32(body[0:4]))
	return pool.Get(idx)
}
