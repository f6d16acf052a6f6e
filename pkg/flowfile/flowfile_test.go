package flowfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepflow/pkg/api"
)

const sampleFlow = `
flow: onboarding
name: User Onboarding
version: "2"
initialData:
  plan: free
steps:
  - id: welcome
    type: INFORMATION
    payload:
      title: Welcome!
  - id: profile
    type: FORM
    condition: needsProfile
    onComplete: saveProfile
  - id: branch
    type: CUSTOM
    next: {resolver: pickTrack}
    skippable: true
    skipTo: finish
  - id: 42
    type: INFORMATION
  - id: tasks
    type: CHECKLIST
    checklist:
      minItemsToComplete: 1
      items:
        - id: email
          label: Verify email
          mandatory: true
        - id: avatar
          label: Upload avatar
  - id: finish
    type: CONFIRMATION
    next: null
`

func sampleRegistry() *Registry {
	return NewRegistry().
		Condition("needsProfile", func(fc *api.Context) bool { return true }).
		Predicate("pickTrack", func(fc *api.Context) *api.StepID {
			id := api.StepID("finish")
			return &id
		}).
		OnComplete("saveProfile", func(ctx context.Context, stepData map[string]any, fc *api.Context) error {
			return nil
		})
}

func TestParseFullFlow(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(sampleFlow), "onboarding.yaml", sampleRegistry())
	require.NoError(t, err)

	require.Equal(t, "onboarding", cfg.FlowID)
	require.Equal(t, "User Onboarding", cfg.FlowName)
	require.Equal(t, "2", cfg.FlowVersion)
	require.Equal(t, "free", cfg.InitialFlowData["plan"])
	require.Len(t, cfg.Steps, 6)

	welcome := cfg.Steps[0]
	require.Equal(t, api.StepID("welcome"), welcome.ID)
	require.Equal(t, api.StepTypeInformation, welcome.Type)
	require.Equal(t, "Welcome!", welcome.Payload["title"])
	require.Nil(t, welcome.Next, "absent target stays absent")

	profile := cfg.Steps[1]
	require.NotNil(t, profile.Condition)
	require.NotNil(t, profile.OnComplete)

	branch := cfg.Steps[2]
	require.True(t, branch.Skippable)
	require.NotNil(t, branch.Next)
	require.Equal(t, api.TargetPredicate, branch.Next.Kind)
	require.NotNil(t, branch.SkipTo)
	require.Equal(t, api.TargetLiteral, branch.SkipTo.Kind)
	require.Equal(t, api.StepID("finish"), branch.SkipTo.ID)

	require.Equal(t, api.StepID("42"), cfg.Steps[3].ID, "numeric ids normalize to decimal strings")

	tasks := cfg.Steps[4]
	require.NotNil(t, tasks.Checklist)
	require.Equal(t, 1, tasks.Checklist.MinItemsToComplete)
	require.Len(t, tasks.Checklist.Items, 2)
	require.True(t, tasks.Checklist.Items[0].Mandatory)

	finish := cfg.Steps[5]
	require.NotNil(t, finish.Next)
	require.Equal(t, api.TargetTerminal, finish.Next.Kind, "explicit null is a terminal target")
}

func TestParseDefaultsTypeToCustom(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte("flow: f\nsteps:\n  - id: only\n"), "f.yaml", nil)
	require.NoError(t, err)
	require.Equal(t, api.StepTypeCustom, cfg.Steps[0].Type)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	reg := sampleRegistry()

	cases := map[string]string{
		"missing flow id":   "steps:\n  - id: a\n",
		"no steps":          "flow: f\n",
		"unknown condition": "flow: f\nsteps:\n  - id: a\n    condition: nope\n",
		"unknown hook":      "flow: f\nsteps:\n  - id: a\n    onComplete: nope\n",
		"unknown resolver":  "flow: f\nsteps:\n  - id: a\n    next: {resolver: nope}\n",
		"empty resolver":    "flow: f\nsteps:\n  - id: a\n    next: {}\n",
		"bad target kind":   "flow: f\nsteps:\n  - id: a\n    next: [x]\n",
		"duplicate ids":     "flow: f\nsteps:\n  - id: a\n  - id: a\n",
		"empty checklist":   "flow: f\nsteps:\n  - id: a\n    checklist:\n      items: []\n",
		"skipTo without skippable": "flow: f\nsteps:\n" +
			"  - id: a\n    skipTo: b\n  - id: b\n",
	}

	for name, doc := range cases {
		_, err := Parse([]byte(doc), name+".yaml", reg)
		require.Error(t, err, "case %q should fail", name)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFlow), 0o600))

	cfg, err := LoadFile(path, sampleRegistry())
	require.NoError(t, err)
	require.Equal(t, "onboarding", cfg.FlowID)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"), nil)
	require.Error(t, err)
}

func TestParseErrorIncludesPath(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("flow: f\n"), "broken.yaml", nil)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "broken.yaml", pe.Path)
	require.Contains(t, err.Error(), "broken.yaml")
}
