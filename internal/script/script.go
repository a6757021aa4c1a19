// Package script prepares user scripts for evaluation: TypeScript and
// modern syntax are lowered, and scripts with imports are bundled into one
// classic script, all with esbuild.
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// Target is the language level scripts are lowered to.
const Target = esbuild.ES2020

// Options controls Prepare.
type Options struct {
	// Transform forces a transform pass even for plain .js sources.
	Transform bool
}

// Load reads path and prepares it. Files with import statements are
// bundled from disk so relative imports resolve.
func Load(path string, opts Options) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	src := string(source)
	if needsBundling(src) {
		return Bundle(path)
	}
	return Prepare(filepath.Base(path), src, opts)
}

// Prepare transforms src when its name calls for it (.ts, .mts, .tsx) or
// when opts.Transform is set; other sources are returned unchanged.
func Prepare(name, src string, opts Options) (string, error) {
	loader, ts := loaderFor(name)
	if !ts && !opts.Transform {
		return src, nil
	}
	result := esbuild.Transform(src, esbuild.TransformOptions{
		Loader:     loader,
		Target:     Target,
		Sourcefile: name,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("transforming %s: %s", name, joinMessages(result.Errors))
	}
	return string(result.Code), nil
}

// Bundle builds the entry point and its imports into a single IIFE.
func Bundle(entryPoint string) (string, error) {
	abs, err := filepath.Abs(entryPoint)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", entryPoint, err)
	}
	result := esbuild.Build(esbuild.BuildOptions{
		EntryPoints:   []string{abs},
		AbsWorkingDir: filepath.Dir(abs),
		Bundle:        true,
		Format:        esbuild.FormatIIFE,
		Write:         false,
		Platform:      esbuild.PlatformNeutral,
		Target:        Target,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("bundling %s: %s", entryPoint, joinMessages(result.Errors))
	}
	if len(result.OutputFiles) == 0 {
		return "", fmt.Errorf("bundling %s produced no output", entryPoint)
	}
	return string(result.OutputFiles[0].Contents), nil
}

func loaderFor(name string) (esbuild.Loader, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ts", ".mts", ".cts":
		return esbuild.LoaderTS, true
	case ".tsx":
		return esbuild.LoaderTSX, true
	default:
		return esbuild.LoaderJS, false
	}
}

// needsBundling reports whether source has import statements.
func needsBundling(source string) bool {
	return strings.Contains(source, "import ") ||
		strings.Contains(source, "import{") ||
		strings.Contains(source, "require(")
}

func joinMessages(msgs []esbuild.Message) string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return strings.Join(out, "; ")
}
