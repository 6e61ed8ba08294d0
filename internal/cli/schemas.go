package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue/cuecontext"

	"github.com/semforge/semforge/internal/compiler"
)

// LoadSchemaSources compiles every CUE schema file under a path. A file
// path loads just that file; a directory loads its *.cue files sorted by
// name. Schemas keep declaration order within each file.
func LoadSchemaSources(path string) ([]compiler.Source, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("schema path not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("access schema path: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = findCueFiles(path)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no CUE files found in %s", path)
		}
	}

	cctx := cuecontext.New()
	var srcs []compiler.Source
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		v := cctx.CompileBytes(data)
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("compile %s: %w", file, err)
		}
		schemas, err := compiler.LoadSchemas(v)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
		for _, s := range schemas {
			srcs = append(srcs, s)
		}
	}
	return srcs, nil
}

func findCueFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cue") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
