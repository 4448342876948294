package yamlsrc_test

import (
	"os"
	"testing"

	"github.com/yasl-lang/yasl/internal/yamlsrc"
)

func TestLoadStringSingleDocument(t *testing.T) {
	f, err := yamlsrc.LoadString("inline", []byte("a: 1\nb: two\n"))
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	if len(f.Documents) != 1 {
		t.Fatalf("got %d documents, want 1", len(f.Documents))
	}
	if f.Documents[0].Root.Line != 1 {
		t.Errorf("root line = %d, want 1", f.Documents[0].Root.Line)
	}
}

func TestLoadStringMultiDocument(t *testing.T) {
	f, err := yamlsrc.LoadString("inline", []byte("a: 1\n---\nb: 2\n---\nc: 3\n"))
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	if len(f.Documents) != 3 {
		t.Fatalf("got %d documents, want 3", len(f.Documents))
	}
	for i, doc := range f.Documents {
		if doc.Index != i {
			t.Errorf("document %d has Index %d", i, doc.Index)
		}
	}
}

func TestLoadStringParseError(t *testing.T) {
	_, err := yamlsrc.LoadString("inline", []byte("a: [1, 2\n"))
	if err == nil {
		t.Fatalf("expected a parse error for malformed YAML")
	}
	if _, ok := err.(*yamlsrc.ParseError); !ok {
		t.Errorf("error type = %T, want *yamlsrc.ParseError", err)
	}
}

func TestLoadDirSortsLexicographically(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/b.yasl", "b: 1\n")
	writeFile(t, dir+"/a.yasl", "a: 1\n")

	files, err := yamlsrc.LoadDir(dir, ".yasl")
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0].Path > files[1].Path {
		t.Errorf("files not sorted: %s before %s", files[0].Path, files[1].Path)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
