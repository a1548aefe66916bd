//go:build mage

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// pkgLines counts production and test lines of one package directory.
type pkgLines struct {
	Prod int `json:"prod"`
	Test int `json:"test"`
}

// Stats prints Go lines of code per package as one JSON line, followed by a
// total line.
func Stats() error {
	perPkg := map[string]*pkgLines{}

	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path == "vendor" || path == ".git" || path == binaryDir || strings.HasPrefix(path, "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		count, countErr := countLines(path)
		if countErr != nil {
			return nil
		}
		dir := filepath.Dir(path)
		if perPkg[dir] == nil {
			perPkg[dir] = &pkgLines{}
		}
		if strings.HasSuffix(path, "_test.go") {
			perPkg[dir].Test += count
		} else {
			perPkg[dir].Prod += count
		}
		return nil
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(perPkg))
	for d := range perPkg {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var total pkgLines
	for _, d := range dirs {
		p := perPkg[d]
		total.Prod += p.Prod
		total.Test += p.Test
		line, err := json.Marshal(map[string]any{"pkg": d, "prod": p.Prod, "test": p.Test})
		if err != nil {
			return err
		}
		fmt.Println(string(line))
	}
	line, err := json.Marshal(map[string]any{"pkg": "total", "prod": total.Prod, "test": total.Test})
	if err != nil {
		return err
	}
	fmt.Println(string(line))
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
