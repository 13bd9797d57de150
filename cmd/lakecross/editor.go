package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/divijg19/lakecross/internal/config"
)

const editHeader = `# Lakecross configuration. Edit freely; lines starting with # are ignored.
# Durations use Go syntax (5s, 2m30s, 720h). Environment variables (LAKECROSS_*,
# OPENAI_API_KEY) override what is saved here.
`

func buildEditorCommand(editor string, path string) (*exec.Cmd, error) {
	argv := strings.Fields(strings.TrimSpace(editor))
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty editor")
	}

	editorBin, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, err
	}

	args := argv[1:]
	switch filepath.Base(editorBin) {
	case "code", "code-insiders", "codium", "vscodium":
		hasWait := false
		for _, a := range args {
			if a == "--wait" {
				hasWait = true
				break
			}
		}
		if !hasWait {
			args = append(args, "--wait")
		}
	}

	args = append(args, path)
	return exec.Command(editorBin, args...), nil
}

func availableEditors() []string {
	candidates := []string{os.Getenv("VISUAL"), os.Getenv("EDITOR"), "code", "codium", "subl", "nvim", "vim", "vi", "nano", "emacs", "micro", "kate", "gedit"}
	seen := make(map[string]struct{})
	editors := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		argv := strings.Fields(candidate)
		if _, err := exec.LookPath(argv[0]); err != nil {
			continue
		}
		seen[candidate] = struct{}{}
		editors = append(editors, candidate)
	}
	return editors
}

// resolveEditor returns a command for the configured editor, else the first of
// $VISUAL, $EDITOR, nano, vim and vi that exists.
func resolveEditor(configured string, path string) (*exec.Cmd, error) {
	if strings.TrimSpace(configured) != "" {
		cmd, err := buildEditorCommand(configured, path)
		if err != nil {
			return nil, fmt.Errorf("configured editor not found: %w", err)
		}
		return cmd, nil
	}
	for _, e := range []string{os.Getenv("VISUAL"), os.Getenv("EDITOR"), "nano", "vim", "vi"} {
		if cmd, err := buildEditorCommand(e, path); err == nil {
			return cmd, nil
		}
	}
	return nil, errors.New("no editor found in $VISUAL/$EDITOR and no fallback (nano/vim/vi) is available")
}

// renderEditable is the text placed in the editor for cfg.
func renderEditable(cfg config.Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return editHeader + "\n" + string(data), nil
}

// parseEdited decodes and validates what came back from the editor.
func parseEdited(text string) (config.Config, error) {
	cfg := config.Default()
	if err := yaml.Unmarshal([]byte(text), &cfg); err != nil {
		return cfg, fmt.Errorf("parse: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// editConfig opens cfg in the user's editor until it parses and validates, or the user gives up.
func editConfig(cfg config.Config, in io.Reader) (config.Config, error) {
	text, err := renderEditable(cfg)
	if err != nil {
		return cfg, err
	}
	reader := bufio.NewReader(in)

	for {
		edited, err := runEditor(cfg.Editor, text)
		if err != nil {
			return cfg, err
		}
		next, perr := parseEdited(edited)
		if perr == nil {
			return next, nil
		}

		fmt.Fprintf(os.Stderr, "config: %v\n", perr)
		again, err := promptYesNo(reader, "Edit again?")
		if err != nil {
			return cfg, err
		}
		if !again {
			return cfg, perr
		}
		text = edited
	}
}

func runEditor(editor, initial string) (string, error) {
	file, err := os.CreateTemp("", "lakecross-config-*.yaml")
	if err != nil {
		return "", err
	}
	path := file.Name()
	defer func() {
		_ = os.Remove(path)
	}()

	if _, err := file.WriteString(initial); err != nil {
		_ = file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}

	cmd, err := resolveEditor(editor, path)
	if err != nil {
		return "", err
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
