// Command docgen builds internal/docs/api.adoc from the @Title, @Route,
// @Description and @Response annotations on the API handlers.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

type Endpoint struct {
	Title       string
	Route       string
	Description string
	Response    string
	File        string
}

var (
	reTitle = regexp.MustCompile(`// @Title: (.*)`)
	reRoute = regexp.MustCompile(`// @Route: (.*)`)
	reDesc  = regexp.MustCompile(`// @Description: (.*)`)
	reResp  = regexp.MustCompile(`// @Response: (.*)`)
)

// sections orders the reference by handler file.
var sections = []struct{ file, heading string }{
	{"users.go", "Registration and users"},
	{"friends.go", "Friend requests"},
	{"posts.go", "Posts"},
	{"health.go", "Operations"},
	{"backup.go", "Operator backups (admin listener)"},
	{"stream.go", "Live events and docs"},
}

func main() {
	apiDir := "internal/api"
	out := "internal/docs/api.adoc"
	if len(os.Args) > 1 {
		apiDir = os.Args[1]
	}
	if len(os.Args) > 2 {
		out = os.Args[2]
	}

	endpoints, err := scan(apiDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(out, []byte(render(endpoints)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s (%d endpoints)\n", out, len(endpoints))
}

func scan(apiDir string) ([]Endpoint, error) {
	files, err := os.ReadDir(apiDir)
	if err != nil {
		return nil, err
	}

	var endpoints []Endpoint
	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}

		found, err := scanFile(filepath.Join(apiDir, name))
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, found...)
	}
	return endpoints, nil
}

func scanFile(path string) ([]Endpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var endpoints []Endpoint
	current := Endpoint{File: filepath.Base(path)}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		if match := reTitle.FindStringSubmatch(line); len(match) > 1 {
			current.Title = strings.TrimSpace(match[1])
		}
		if match := reRoute.FindStringSubmatch(line); len(match) > 1 {
			current.Route = strings.TrimSpace(match[1])
		}
		if match := reDesc.FindStringSubmatch(line); len(match) > 1 {
			current.Description = strings.TrimSpace(match[1])
		}
		if match := reResp.FindStringSubmatch(line); len(match) > 1 {
			current.Response = strings.TrimSpace(match[1])
			// @Response closes the block
			if current.Title != "" && current.Route != "" {
				endpoints = append(endpoints, current)
			}
			current = Endpoint{File: filepath.Base(path)}
		}
	}
	return endpoints, scanner.Err()
}

func render(endpoints []Endpoint) string {
	byFile := map[string][]Endpoint{}
	for _, ep := range endpoints {
		byFile[ep.File] = append(byFile[ep.File], ep)
	}

	var b strings.Builder
	b.WriteString("= sgr API Reference\n\n")
	b.WriteString("Auto-generated from code comments by `go run ./cmd/docgen`.\n\n")
	b.WriteString("Errors are returned as `{\"error\": \"...\", \"code\": \"...\"}`. ")
	b.WriteString("Relay outcomes that were not observed before the finality timeout answer ")
	b.WriteString("`504` and carry the transaction `signature`; poll `GET /api/transactions/{signature}`.\n")

	seen := map[string]bool{}
	for _, sec := range sections {
		eps := byFile[sec.file]
		if len(eps) == 0 {
			continue
		}
		seen[sec.file] = true
		writeSection(&b, sec.heading, eps)
	}

	var rest []string
	for file := range byFile {
		if !seen[file] {
			rest = append(rest, file)
		}
	}
	sort.Strings(rest)
	for _, file := range rest {
		writeSection(&b, strings.TrimSuffix(file, ".go"), byFile[file])
	}
	return b.String()
}

func writeSection(b *strings.Builder, heading string, eps []Endpoint) {
	fmt.Fprintf(b, "\n== %s\n", heading)
	for _, ep := range eps {
		fmt.Fprintf(b, "\n=== %s\n\n", ep.Title)
		fmt.Fprintf(b, "`%s`\n\n", ep.Route)
		fmt.Fprintf(b, "%s\n\n", ep.Description)
		fmt.Fprintf(b, "Response:: `%s`\n", ep.Response)
	}
}
