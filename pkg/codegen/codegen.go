// Package codegen generates source modules exposing the remote asset ids of
// synced resources, so game code can reference passes, badges, and products
// by name instead of hard-coded numbers.
//
// The generated Luau module (and optional TypeScript declaration) is derived
// from the checkpoint: only resources with an assigned remote id appear.
package codegen

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rbxsync/rbxsync/pkg/config"
	"github.com/rbxsync/rbxsync/pkg/state"
)

const header = "This file is auto-generated by rbxsync. Do not edit manually."

// Tree is the key layout of the generated module.
type Tree map[string]*Node

// Node is either a leaf holding an asset id or a branch of children.
type Node struct {
	ID       int64
	Children Tree
}

func (n *Node) leaf() bool { return n.Children == nil }

// BuildTree lays out every checkpointed resource according to the codegen
// configuration: flat style produces dotted top-level keys, nested style
// produces branches per path segment. Per-resource path overrides beat the
// per-kind section defaults, and extra entries inject pre-existing assets.
func BuildTree(project *config.Project, cp *state.Checkpoint) Tree {
	tree := Tree{}
	flat := project.Codegen.Style != config.StyleNested

	passPath := sectionDefault(project.Codegen.Paths.Passes, "passes")
	badgePath := sectionDefault(project.Codegen.Paths.Badges, "badges")
	productPath := sectionDefault(project.Codegen.Paths.Products, "products")

	for key, rec := range cp.Passes {
		path := passPath
		if spec, ok := project.Passes[key]; ok && spec.Path != "" {
			path = spec.Path
		}
		tree.insertItem(path, key, rec.RemoteID, flat)
	}
	for key, rec := range cp.Badges {
		path := badgePath
		if spec, ok := project.Badges[key]; ok && spec.Path != "" {
			path = spec.Path
		}
		tree.insertItem(path, key, rec.RemoteID, flat)
	}
	for key, rec := range cp.Products {
		path := productPath
		if spec, ok := project.Products[key]; ok && spec.Path != "" {
			path = spec.Path
		}
		tree.insertItem(path, key, rec.RemoteID, flat)
	}

	for fullKey, id := range project.Codegen.Extra {
		if flat {
			tree[fullKey] = &Node{ID: id}
			continue
		}
		if dot := strings.LastIndex(fullKey, "."); dot >= 0 {
			tree.insert(strings.Split(fullKey[:dot], "."), fullKey[dot+1:], id)
		} else {
			tree[fullKey] = &Node{ID: id}
		}
	}

	return tree
}

func sectionDefault(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

func (t Tree) insertItem(path, key string, id int64, flat bool) {
	if flat {
		t[path+"."+key] = &Node{ID: id}
		return
	}
	t.insert(strings.Split(path, "."), key, id)
}

func (t Tree) insert(segments []string, key string, id int64) {
	if len(segments) == 0 {
		t[key] = &Node{ID: id}
		return
	}

	node, ok := t[segments[0]]
	if !ok || node.leaf() {
		// A leaf in the way of a branch is promoted; a well-formed config
		// never hits this, but a path colliding with a key should not panic.
		node = &Node{Children: Tree{}}
		t[segments[0]] = node
	}
	node.Children.insert(segments[1:], key, id)
}

// Generate writes the configured output files relative to baseDir. A project
// without a codegen output configured is a no-op.
func Generate(project *config.Project, cp *state.Checkpoint, baseDir string) ([]string, error) {
	if project.Codegen.Output == "" {
		return nil, nil
	}

	tree := BuildTree(project, cp)
	luauPath := filepath.Join(baseDir, filepath.FromSlash(project.Codegen.Output))

	var written []string
	if err := writeFile(luauPath, RenderLuau(tree, moduleName(luauPath))); err != nil {
		return nil, err
	}
	written = append(written, luauPath)

	if project.Codegen.TypeScript {
		tsPath := strings.TrimSuffix(luauPath, filepath.Ext(luauPath)) + ".d.ts"
		if err := writeFile(tsPath, RenderTypeScript(tree, moduleName(luauPath))); err != nil {
			return nil, err
		}
		written = append(written, tsPath)
	}

	return written, nil
}

// moduleName derives the generated variable name from the output file stem.
func moduleName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = strings.TrimSuffix(stem, ".d")
	if stem == "" {
		return "Assets"
	}
	return stem
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// RenderLuau renders the tree as a Luau module returning a table.
func RenderLuau(tree Tree, varName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- %s\n\n", header)
	fmt.Fprintf(&b, "local %s = {\n", varName)
	for _, key := range tree.sortedKeys() {
		fmt.Fprintf(&b, "\t%s = ", luauKey(key))
		renderLuauNode(&b, tree[key], 1)
	}
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "return %s\n", varName)
	return b.String()
}

func renderLuauNode(b *strings.Builder, node *Node, depth int) {
	if node.leaf() {
		fmt.Fprintf(b, "%d,\n", node.ID)
		return
	}
	indent := strings.Repeat("\t", depth)
	b.WriteString("{\n")
	for _, key := range node.Children.sortedKeys() {
		fmt.Fprintf(b, "%s\t%s = ", indent, luauKey(key))
		renderLuauNode(b, node.Children[key], depth+1)
	}
	fmt.Fprintf(b, "%s},\n", indent)
}

// RenderTypeScript renders the tree as an ambient declaration for roblox-ts.
func RenderTypeScript(tree Tree, varName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// %s\n\n", header)
	fmt.Fprintf(&b, "declare const %s: {\n", varName)
	for _, key := range tree.sortedKeys() {
		fmt.Fprintf(&b, "\t%s: ", tsKey(key))
		renderTSNode(&b, tree[key], 1)
	}
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "export = %s\n", varName)
	return b.String()
}

func renderTSNode(b *strings.Builder, node *Node, depth int) {
	if node.leaf() {
		b.WriteString("number\n")
		return
	}
	indent := strings.Repeat("\t", depth)
	b.WriteString("{\n")
	for _, key := range node.Children.sortedKeys() {
		fmt.Fprintf(b, "%s\t%s: ", indent, tsKey(key))
		renderTSNode(b, node.Children[key], depth+1)
	}
	fmt.Fprintf(b, "%s}\n", indent)
}

func (t Tree) sortedKeys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var luauReserved = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "if": true,
	"in": true, "local": true, "nil": true, "not": true, "or": true,
	"repeat": true, "return": true, "then": true, "true": true, "until": true,
	"while": true, "continue": true, "type": true, "export": true,
}

var tsReserved = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "enum": true, "export": true, "extends": true,
	"false": true, "finally": true, "for": true, "function": true, "if": true,
	"import": true, "in": true, "instanceof": true, "new": true, "null": true,
	"return": true, "super": true, "switch": true, "this": true, "throw": true,
	"true": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "yield": true,
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// luauKey renders a table key, bracket-quoting anything that is not a plain
// identifier or collides with a reserved word.
func luauKey(key string) string {
	if isIdentifier(key) && !luauReserved[key] {
		return key
	}
	return `["` + escape(key) + `"]`
}

func tsKey(key string) string {
	if isIdentifier(key) && !tsReserved[key] {
		return key
	}
	return `"` + escape(key) + `"`
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
