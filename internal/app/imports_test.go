package app

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// The RtMidi driver needs cgo and system MIDI headers. Only internal/midiout
// may import it, so the instrument, web and display binaries build without them.
func TestHeadlessPackagesDoNotLinkRtMidi(t *testing.T) {
	dirs := []string{".", "../sink", "../engine", "../config", "../sensors", "../mapping", "../orientation"}

	fset := token.NewFileSet()
	for _, dir := range dirs {
		files, err := filepath.Glob(filepath.Join(dir, "*.go"))
		if err != nil {
			t.Fatalf("glob %s: %v", dir, err)
		}
		if len(files) == 0 {
			t.Fatalf("no Go files in %s", dir)
		}
		for _, name := range files {
			if strings.HasSuffix(name, "_test.go") {
				continue
			}
			f, err := parser.ParseFile(fset, name, nil, parser.ImportsOnly)
			if err != nil {
				t.Fatalf("parse %s: %v", name, err)
			}
			for _, imp := range f.Imports {
				path, _ := strconv.Unquote(imp.Path.Value)
				if strings.Contains(path, "rtmididrv") {
					t.Errorf("%s imports %s", name, path)
				}
			}
		}
	}
}
