package helm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// ChartSpec identifies a chart in a repository.
type ChartSpec struct {
	Repository string `yaml:"repository,omitempty"`
	Name       string `yaml:"name,omitempty"`
	Version    string `yaml:"version,omitempty"`
}

// ControllerChart is the upstream AWS Load Balancer Controller chart.
var ControllerChart = ChartSpec{
	Repository: "https://aws.github.io/eks-charts",
	Name:       "aws-load-balancer-controller",
	Version:    "1.7.2",
}

// WithOverrides returns the spec with any non-empty field of o applied.
func (s ChartSpec) WithOverrides(o ChartSpec) ChartSpec {
	if o.Repository != "" {
		s.Repository = o.Repository
	}
	if o.Name != "" {
		s.Name = o.Name
	}
	if o.Version != "" {
		s.Version = o.Version
	}
	return s
}

func (s ChartSpec) String() string {
	return fmt.Sprintf("%s/%s@%s", s.Repository, s.Name, s.Version)
}

var (
	memoryCacheMu sync.Mutex
	memoryCache   = map[string]*chart.Chart{}
)

// GetCachePath returns the directory downloaded chart archives are kept in.
func GetCachePath() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "awslbc", "charts")
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "awslbc", "charts")
	}
	return filepath.Join(os.TempDir(), "awslbc", "charts")
}

// ClearMemoryCache drops charts loaded during this process.
func ClearMemoryCache() {
	memoryCacheMu.Lock()
	defer memoryCacheMu.Unlock()
	memoryCache = map[string]*chart.Chart{}
}

// DownloadChart returns the chart for spec, downloading it into the cache
// directory on first use.
func DownloadChart(ctx context.Context, spec ChartSpec) (*chart.Chart, error) {
	if spec.Repository == "" || spec.Name == "" {
		return nil, fmt.Errorf("chart repository and name are required")
	}
	key := spec.String()

	memoryCacheMu.Lock()
	defer memoryCacheMu.Unlock()
	if ch, ok := memoryCache[key]; ok {
		return ch, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cachePath := GetCachePath()
	if err := os.MkdirAll(cachePath, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create chart cache %s: %w", cachePath, err)
	}

	settings := cli.New()
	settings.RepositoryCache = cachePath

	log.FromContext(ctx).V(1).Info("locating chart", "chart", key)
	opts := action.ChartPathOptions{RepoURL: spec.Repository, Version: spec.Version}
	chartPath, err := opts.LocateChart(spec.Name, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to locate chart %s: %w", key, err)
	}

	ch, err := loadChartFromPath(chartPath)
	if err != nil {
		return nil, err
	}
	memoryCache[key] = ch
	return ch, nil
}

func loadChartFromPath(path string) (*chart.Chart, error) {
	ch, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart from %s: %w", path, err)
	}
	return ch, nil
}
