package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hyunwoolee/bandi/pkg/logger"
)

// Manager loads markdown skill files from dir. Each file's body is
// injected into the system prompt, so new skills take effect on the
// next model call without a restart.
type Manager struct {
	dir string
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

var (
	frontmatterRe = regexp.MustCompile(`(?s)^---.*?---\s*`)
	unsafeNameRe  = regexp.MustCompile(`[^\w\-]`)
)

// LoadContext reads every skill file fresh and formats them for the
// system prompt. Empty when no skills are installed.
func (m *Manager) LoadContext() string {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return ""
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(m.dir, name))
		if err != nil {
			logger.WarnCF("skills", "failed to load skill", map[string]interface{}{
				"file":  name,
				"error": err.Error(),
			})
			continue
		}
		body := strings.TrimSpace(frontmatterRe.ReplaceAllString(strings.TrimSpace(string(data)), ""))
		if body == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("## Skills\n")
		}
		b.WriteString("\n### ")
		b.WriteString(strings.TrimSuffix(name, ".md"))
		b.WriteString("\n\n")
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Manager) List() []string {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, strings.TrimSuffix(e.Name(), ".md"))
		}
	}
	sort.Strings(names)
	return names
}

// Create writes a new skill file and returns its path. The name is
// sanitized to a safe lowercase filename.
func (m *Manager) Create(name, description, instructions string) (string, error) {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return "", fmt.Errorf("skill instructions must not be empty")
	}

	safe := unsafeNameRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	if safe == "" {
		return "", fmt.Errorf("skill name must not be empty")
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", fmt.Errorf("create skills dir: %w", err)
	}

	path := filepath.Join(m.dir, safe+".md")
	content := fmt.Sprintf("---\nname: %s\ndescription: %s\n---\n\n%s\n",
		safe, strings.TrimSpace(description), instructions)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write skill: %w", err)
	}

	logger.InfoCF("skills", "created skill", map[string]interface{}{"name": safe})
	return path, nil
}
