package pipeline

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petpipe/internal/models"
	"petpipe/pkg/config"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		fatal    error
		branches []error
		want     int
	}{
		{"clean", nil, []error{nil, nil}, ExitOK},
		{"branch failure", nil, []error{nil, errors.New("boom")}, ExitBranchFailures},
		{"fatal", errors.New("missing"), nil, ExitFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReport(models.NewIdentity("01", "01"))
			for i, err := range tt.branches {
				r.add("pvc", string(rune('a'+i)), err)
			}
			r.finish(tt.fatal)
			assert.Equal(t, tt.want, r.ExitCode())
		})
	}
}

func TestManifestRoundTrip(t *testing.T) {
	r := newReport(models.NewIdentity("sub-02", "ses-03"))
	r.Tracer = "pib"
	r.ReferenceMeans["brainstem"] = 1.5
	r.add("suvr", "brainstem", nil, "/out/a.nii.gz")
	r.add("pvc", "brainstem/MG", errors.New("petpvc exited 1"))
	r.finish(nil)

	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, WriteManifest(path, NewManifest(r, config.DefaultConfig())))

	m, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, r.RunID, m.RunID)
	assert.Equal(t, "02", m.Subject)
	assert.Equal(t, "pib", m.Tracer)
	assert.Equal(t, 1.5, m.ReferenceMeans["brainstem"])
	assert.Equal(t, [3]float64{2.4, 2.4, 2.4}, m.Settings.PSF)
	require.Len(t, m.Branches, 2)
	assert.True(t, m.Branches[0].OK)
	assert.Equal(t, []string{"/out/a.nii.gz"}, m.Branches[0].Outputs)
	assert.False(t, m.Branches[1].OK)
	assert.Equal(t, "petpvc exited 1", m.Branches[1].Error)
	assert.Contains(t, r.Summary(), "sub-02_ses-03 completed: 2 branches, 1 failed")
}
