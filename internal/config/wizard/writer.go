package wizard

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/config"
)

// Function variables for dependency injection in tests.
var (
	now              = time.Now
	confirmOverwrite = defaultConfirmOverwrite
)

// WriteConfig writes cfg to outputPath below a descriptive header.
func WriteConfig(cfg *config.Config, outputPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(generateHeader(outputPath))
	sb.WriteString("\n")
	sb.Write(data)

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func generateHeader(outputPath string) string {
	return fmt.Sprintf(`# awslbc stack configuration
# Generated by: awslbc init
# Generated at: %s
#
# AWS credentials are read from the default chain (AWS_PROFILE,
# AWS_ACCESS_KEY_ID, instance roles). The cluster is reached through
# KUBECONFIG unless kubeconfig is set below.
#
# Usage:
#   awslbc preview -c %s
#   awslbc apply -c %s
`, now().Format(time.RFC3339), outputPath, outputPath)
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ConfirmOverwrite asks whether an existing file may be replaced.
func ConfirmOverwrite(path string) (bool, error) {
	return confirmOverwrite(path)
}

func defaultConfirmOverwrite(path string) (bool, error) {
	if !isTerminal() {
		return false, ErrNotTerminal
	}
	var overwrite bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("%s already exists. Overwrite?", path)).
		Value(&overwrite).
		Run()
	return overwrite, err
}
