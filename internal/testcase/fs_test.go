package testcase_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/testcase"
)

func writeSet(t *testing.T, base, id string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(base, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func TestFSStore_LoadOrdersNumerically(t *testing.T) {
	base := t.TempDir()
	writeSet(t, base, "normal", map[string]string{
		"info": `{"spj": false, "test_cases": {
			"10": {"input_name": "10.in", "output_name": "10.out"},
			"2":  {"input_name": "2.in",  "output_name": "2.out"},
			"1":  {"input_name": "1.in",  "output_name": "1.out"}}}`,
		"1.in": "1 2\n", "1.out": "3\n",
		"2.in": "3 4\n", "2.out": "7\n",
		"10.in": "5 5\n", "10.out": "10\n",
	})

	set, err := testcase.NewFSStore(base).Load(context.Background(), "normal")
	require.NoError(t, err)
	assert.False(t, set.SPJ)
	require.Len(t, set.Cases, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{set.Cases[0].Index, set.Cases[1].Index, set.Cases[2].Index})
	assert.Equal(t, "3 4\n", string(set.Cases[1].Input))
	assert.Equal(t, "10\n", string(set.Cases[2].Expected))
}

func TestFSStore_SPJWithoutOutputs(t *testing.T) {
	base := t.TempDir()
	writeSet(t, base, "spj", map[string]string{
		"info": `{"spj": true, "test_cases": {"1": {"input_name": "1.in"}}}`,
		"1.in": "1 2\n",
	})

	set, err := testcase.NewFSStore(base).Load(context.Background(), "spj")
	require.NoError(t, err)
	assert.True(t, set.SPJ)
	assert.Empty(t, set.Cases[0].Expected)
}

func TestFSStore_NotFound(t *testing.T) {
	_, err := testcase.NewFSStore(t.TempDir()).Load(context.Background(), "missing")
	assert.Equal(t, domain.KindTestCaseNotFound, domain.KindOf(err))
}

func TestFSStore_RejectsEscapingNames(t *testing.T) {
	base := t.TempDir()
	writeSet(t, base, "evil", map[string]string{
		"info": `{"spj": false, "test_cases": {"1": {"input_name": "../../etc/passwd", "output_name": "1.out"}}}`,
	})

	_, err := testcase.NewFSStore(base).Load(context.Background(), "evil")
	assert.Equal(t, domain.KindSystemError, domain.KindOf(err))

	_, err = testcase.NewFSStore(base).Load(context.Background(), "../evil")
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))
}

func TestFSStore_BadManifest(t *testing.T) {
	base := t.TempDir()
	writeSet(t, base, "broken", map[string]string{"info": "{not json"})

	_, err := testcase.NewFSStore(base).Load(context.Background(), "broken")
	assert.Equal(t, domain.KindSystemError, domain.KindOf(err))
}

func TestFSStore_DuplicateIndex(t *testing.T) {
	base := t.TempDir()
	writeSet(t, base, "dup", map[string]string{
		"info": `{"spj": false, "test_cases": {
			"1":  {"input_name": "1.in", "output_name": "1.out"},
			"01": {"input_name": "1.in", "output_name": "1.out"}}}`,
		"1.in":  "1\n",
		"1.out": "1\n",
	})

	_, err := testcase.NewFSStore(base).Load(context.Background(), "dup")
	require.Error(t, err)
	assert.Equal(t, domain.KindSystemError, domain.KindOf(err))
	assert.Contains(t, domain.MessageOf(err), "duplicate index")
}
