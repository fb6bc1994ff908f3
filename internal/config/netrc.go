package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// NetrcEntry represents credentials for a single machine in .netrc.
type NetrcEntry struct {
	Machine  string
	Login    string
	Password string
	Account  string
}

const netrcDefault = "default"

// parseNetrc reads a .netrc file into a machine -> entry map. A missing file
// yields an empty map.
func parseNetrc(path string) (map[string]NetrcEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("netrc: open: %w", err)
	}
	defer file.Close()

	var tokens []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens = append(tokens, strings.Fields(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("netrc: scan: %w", err)
	}

	return netrcEntries(tokens), nil
}

// netrcEntries walks the flattened token stream. Keys are only honoured
// once a machine (or default) block has been opened.
func netrcEntries(tokens []string) map[string]NetrcEntry {
	entries := make(map[string]NetrcEntry)
	var current *NetrcEntry

	flush := func() {
		if current != nil && current.Machine != "" {
			entries[current.Machine] = *current
		}
	}

	next := func(i int) (string, bool) {
		if i+1 < len(tokens) {
			return tokens[i+1], true
		}
		return "", false
	}

	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case "machine":
			flush()
			current = nil
			if name, ok := next(i); ok {
				current = &NetrcEntry{Machine: name}
				i++
			}
		case netrcDefault:
			flush()
			current = &NetrcEntry{Machine: netrcDefault}
		case "login", "password", "account":
			value, ok := next(i)
			if !ok {
				continue
			}
			i++
			if current == nil {
				continue
			}
			switch tokens[i-1] {
			case "login":
				current.Login = value
			case "password":
				current.Password = value
			case "account":
				current.Account = value
			}
		}
	}
	flush()

	return entries
}

// findNetrcPath locates the .netrc file, honouring $NETRC first.
func findNetrcPath() string {
	if netrcPath := os.Getenv("NETRC"); netrcPath != "" {
		return netrcPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".netrc")
}

// lookupNetrc returns the entry matching the host of site: exact host:port,
// then bare host, then the default entry.
func lookupNetrc(entries map[string]NetrcEntry, site string) (NetrcEntry, bool) {
	if len(entries) == 0 {
		return NetrcEntry{}, false
	}

	hostname := site
	if parsed, err := url.Parse(site); err == nil && parsed.Host != "" {
		hostname = parsed.Host
	}

	candidates := []string{hostname}
	if host, _, found := strings.Cut(hostname, ":"); found {
		candidates = append(candidates, host)
	}
	candidates = append(candidates, netrcDefault)

	for _, candidate := range candidates {
		if entry, ok := entries[candidate]; ok {
			return entry, true
		}
	}
	return NetrcEntry{}, false
}

// applyNetrcDefaults uses the .netrc password of the Confluence host as the
// personal access token when none was configured.
func (c *Config) applyNetrcDefaults() error {
	if c.Confluence.BaseURL == "" || strings.TrimSpace(c.Confluence.AccessToken) != "" {
		return nil
	}

	netrcPath := findNetrcPath()
	if netrcPath == "" {
		return nil
	}

	entries, err := parseNetrc(netrcPath)
	if err != nil {
		return fmt.Errorf("config: load confluence netrc: %w", err)
	}

	if entry, ok := lookupNetrc(entries, c.Confluence.BaseURL); ok && entry.Password != "" {
		c.Confluence.AccessToken = entry.Password
	}

	return nil
}
