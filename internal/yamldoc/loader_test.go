package yamldoc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bootflow/internal/workflow"
)

func parse(t *testing.T, doc string) (*workflow.Workflow, error) {
	t.Helper()
	return NewLoader().Parse(context.Background(), []byte(doc))
}

func TestParseFullDocument(t *testing.T) {
	wf, err := parse(t, `
name: provision-node
env:
  REGISTRY: registry.test
jobs:
  format:
    container:
      image: registry.test/disk-tools:1
      privileged: true
      workdir: /work
      env:
        DISK: /dev/sda
      mounts:
        - source: /dev
          target: /dev
        - source: /etc/machine-id
          target: /etc/machine-id
          read_only: true
    steps:
      - name: wipe
        run: wipefs -a $DISK
      - run: mkfs.ext4 $DISK
        env:
          MKFS_OPTS: "-F"
  install:
    needs: [format]
    container:
      image: registry.test/installer:1
    services:
      registry:
        image: registry.test/registry:2
    steps:
      - run: install.sh
`)
	require.NoError(t, err)

	assert.Equal(t, "provision-node", wf.Name)
	assert.Equal(t, map[string]string{"REGISTRY": "registry.test"}, wf.Env)
	require.Len(t, wf.Jobs, 2)

	format := wf.Jobs[0]
	assert.Equal(t, "format", format.ID)
	assert.Empty(t, format.Needs)
	assert.Equal(t, workflow.OnSuccess, format.Condition)
	assert.Equal(t, "registry.test/disk-tools:1", format.Container.Image)
	assert.True(t, format.Container.Privileged)
	assert.Equal(t, "/work", format.Container.WorkDir)
	assert.Equal(t, map[string]string{"DISK": "/dev/sda"}, format.Container.Env)
	require.Len(t, format.Container.Mounts, 2)
	assert.Equal(t, workflow.Mount{Source: "/dev", Target: "/dev"}, format.Container.Mounts[0])
	assert.True(t, format.Container.Mounts[1].ReadOnly)
	require.Len(t, format.Steps, 2)
	assert.Equal(t, "wipe", format.Steps[0].Name)
	assert.Equal(t, "wipefs -a $DISK", format.Steps[0].Run)
	assert.Equal(t, map[string]string{"MKFS_OPTS": "-F"}, format.Steps[1].Env)

	install := wf.Jobs[1]
	assert.Equal(t, []string{"format"}, install.Needs)
	require.Contains(t, install.Services, "registry")
	assert.Equal(t, "registry.test/registry:2", install.Services["registry"].Image)
}

func TestParsePreservesJobDocumentOrder(t *testing.T) {
	wf, err := parse(t, `
jobs:
  zeta:
    container: {image: a}
  alpha:
    container: {image: b}
  mid:
    container: {image: c}
`)
	require.NoError(t, err)

	ids := make([]string, 0, len(wf.Jobs))
	for _, j := range wf.Jobs {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, ids)
}

func TestParseConditionField(t *testing.T) {
	wf, err := parse(t, `
jobs:
  cleanup:
    if: always
    container: {image: a}
  rescue:
    if: on_failure
    container: {image: a}
`)
	require.NoError(t, err)
	assert.Equal(t, workflow.Always, wf.Jobs[0].Condition)
	assert.Equal(t, workflow.OnFailure, wf.Jobs[1].Condition)
}

func TestParseRejectsUnknownCondition(t *testing.T) {
	_, err := parse(t, `
jobs:
  a:
    if: sometimes
    container: {image: a}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `job "a"`)
	assert.Contains(t, err.Error(), "unknown condition")
}

func TestParseRejectsMissingImage(t *testing.T) {
	_, err := parse(t, `
jobs:
  a:
    steps:
      - run: true
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "container image is required")
}

func TestParseRejectsMissingServiceImage(t *testing.T) {
	_, err := parse(t, `
jobs:
  a:
    container: {image: a}
    services:
      db: {}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `job "a/db"`)
}

func TestParseRejectsJobsSequence(t *testing.T) {
	_, err := parse(t, `
jobs:
  - container: {image: a}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'jobs' must be a mapping")
}

func TestParseAllowsEmptyDocument(t *testing.T) {
	wf, err := parse(t, "name: empty\n")
	require.NoError(t, err)
	assert.Empty(t, wf.Jobs)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := parse(t, "jobs: [unclosed")
	require.Error(t, err)
}

func TestLoadReadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs:
  a:
    container: {image: registry.test/busybox}
`), 0o644))

	wf, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, wf.Jobs, 1)
	assert.Equal(t, "a", wf.Jobs[0].ID)
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read workflow file")
}
