package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const heartCSV = `age,sex,cp,trestbps,chol,fbs,restecg,thalach,exang,oldpeak,slope,ca,thal,condition
69,1,0,160,234,1,2,131,0,0.1,1,1,0,0
69,0,0,140,239,0,0,151,0,1.8,0,2,0,0
66,0,0,150,226,0,0,114,0,2.6,2,0,0,0
65,1,0,138,282,1,2,174,0,1.4,1,1,0,1
64,1,0,110,211,0,2,144,1,1.8,1,0,0,0
63,1,3,130,254,0,2,147,0,1.4,1,1,2,1
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDescribeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heart.csv")
	require.NoError(t, os.WriteFile(path, []byte(heartCSV), 0o600))

	out, err := execute(t, "describe", "heart", "--data", path, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "heart: 6 rows, 14 columns")
}

func TestDescribeRejectsUnknownDataset(t *testing.T) {
	_, err := execute(t, "describe", "lungs")
	assert.Error(t, err)
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("CARDIOML_HEART_TEST_SIZE", "2")
	_, err := execute(t, "heart", "--data", "unused.csv")
	assert.Error(t, err)
}
