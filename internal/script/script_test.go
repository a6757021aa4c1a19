package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPrepare_PlainJSUnchanged(t *testing.T) {
	src := "var x = 1;"
	got, err := Prepare("a.js", src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got != src {
		t.Errorf("got %q, want source unchanged", got)
	}
}

func TestPrepare_StripsTypes(t *testing.T) {
	got, err := Prepare("a.ts", "const n: number = 1; function f(x: string): string { return x }", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, ": number") || strings.Contains(got, ": string") {
		t.Errorf("type annotations survived: %q", got)
	}
}

func TestPrepare_SyntaxError(t *testing.T) {
	if _, err := Prepare("a.ts", "const = ;", Options{}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestPrepare_ForcedTransformLowersSyntax(t *testing.T) {
	got, err := Prepare("a.js", "let a = b ?? c;", Options{Transform: true})
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Fatal("empty output")
	}
}

func TestLoad_BundlesImports(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lib.js"), []byte("export const answer = 42;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "main.js")
	if err := os.WriteFile(main, []byte("import { answer } from './lib.js';\nglobalThis.out = answer;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(main, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "import ") {
		t.Errorf("bundle still contains an import: %q", got)
	}
	if !strings.Contains(got, "42") {
		t.Errorf("bundle lost the imported value: %q", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.js"), Options{}); err == nil {
		t.Fatal("expected an error")
	}
}
