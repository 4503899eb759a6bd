package act

import (
	"fmt"
	"os"
	"strings"
)

// activityStarter begins a new activity definition.
const activityStarter = ">>"

// LoadGraphs parses an activity definition file. '#' lines and blanks are
// ignored; any invalid definition is a configuration error (fatal at
// startup, per the error taxonomy).
func LoadGraphs(path string) ([]*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read activity definitions: %w", err)
	}
	return ParseGraphs(string(data))
}

// ParseGraphs parses activity definitions from a string.
func ParseGraphs(text string) ([]*Graph, error) {
	var graphs []*Graph
	var name string
	var body []string

	flush := func() error {
		if name == "" || len(body) == 0 {
			return nil
		}
		g, err := ParseGraph(name, strings.Join(body, "\n"))
		if err != nil {
			return err
		}
		graphs = append(graphs, g)
		body = nil
		return nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, activityStarter) {
			if err := flush(); err != nil {
				return nil, err
			}
			parts := strings.SplitN(line, activityStarter, 2)
			name = strings.TrimSpace(parts[1])
			continue
		}
		body = append(body, line)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return graphs, nil
}
