package parser

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/entity"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
)

// parseManifest extracts a declarative-config ParsedFile from an Android
// manifest: permissions and SDK versions as Variables with structured
// scope kinds, components (activities/services/receivers/providers) as
// Classes tagged with a component-kind decorator and the exported flag.
// A fatal XML structural error yields ParseFailure.
func parseManifest(path string, source []byte) (*entity.ParsedFile, error) {
	pf := &entity.ParsedFile{Path: path, Language: string(lang.Manifest)}

	dec := xml.NewDecoder(bytes.NewReader(source))
	lineAt := lineIndex(source)

	componentKinds := map[string]entity.Attr{
		"activity": entity.AttrActivity,
		"service":  entity.AttrService,
		"receiver": entity.AttrReceiver,
		"provider": entity.AttrProvider,
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseFailure{Path: path, Reason: "malformed xml", Err: err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		line := lineAt(dec.InputOffset())

		switch start.Name.Local {
		case "manifest":
			if pkg := attrValue(start, "package"); pkg != "" {
				pf.Imports = append(pf.Imports, entity.Import{
					Kind: entity.ImportPackage, Module: pkg, Line: line,
				})
			}
		case "uses-permission", "uses-permission-sdk-23", "permission":
			if name := attrValue(start, "name"); name != "" {
				pf.Globals = append(pf.Globals, entity.Variable{
					Name:      name,
					StartLine: line, EndLine: line,
					ScopeKind: entity.ScopePermission,
				})
			}
		case "uses-sdk":
			for _, a := range start.Attr {
				if a.Name.Local == "minSdkVersion" || a.Name.Local == "targetSdkVersion" || a.Name.Local == "maxSdkVersion" {
					pf.Globals = append(pf.Globals, entity.Variable{
						Name:      a.Name.Local,
						StartLine: line, EndLine: line,
						ScopeKind: entity.ScopeSDKVersion,
						TypeText:  a.Value,
					})
				}
			}
		case "activity", "service", "receiver", "provider":
			name := attrValue(start, "name")
			if name == "" {
				continue
			}
			c := entity.Class{
				Name:      componentClassName(name),
				StartLine: line, EndLine: line,
				Attrs:      componentKinds[start.Name.Local],
				Decorators: []string{start.Name.Local},
			}
			if attrValue(start, "exported") == "true" {
				c.Attrs |= entity.AttrExported
			}
			pf.Classes = append(pf.Classes, c)
		}
	}

	pf.Sanitize()
	return pf, nil
}

// attrValue returns the value of the attribute with the given local name,
// ignoring the android: namespace.
func attrValue(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// componentClassName turns ".ui.MainActivity" or "com.app.MainActivity"
// into the bare class name.
func componentClassName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// lineIndex returns a function mapping a byte offset to a 1-based line.
func lineIndex(source []byte) func(int64) int {
	var newlines []int64
	for i, b := range source {
		if b == '\n' {
			newlines = append(newlines, int64(i))
		}
	}
	return func(offset int64) int {
		line := 1
		for _, nl := range newlines {
			if nl >= offset {
				break
			}
			line++
		}
		return line
	}
}
