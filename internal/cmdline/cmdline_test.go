package cmdline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harsh-BH/sentinel-judge/internal/cmdline"
)

func TestBuild(t *testing.T) {
	args, err := cmdline.Build(
		"/usr/bin/gcc -O2 {src_path} -lm -o {exe_path}",
		map[string]string{"src_path": "/w/1/main.c", "exe_path": "/w/1/main"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/gcc", "-O2", "/w/1/main.c", "-lm", "-o", "/w/1/main"}, args)
}

func TestBuild_QuotedArgumentStaysWhole(t *testing.T) {
	args, err := cmdline.Build(`/bin/sh -c "echo {msg}"`, map[string]string{"msg": "hi there"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/sh", "-c", "echo hi there"}, args)
}

func TestBuild_UnknownPlaceholderKept(t *testing.T) {
	args, err := cmdline.Build("{exe_path} {other}", map[string]string{"exe_path": "/a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "{other}"}, args)
}

func TestBuild_Empty(t *testing.T) {
	_, err := cmdline.Build("   ", nil)
	assert.ErrorIs(t, err, cmdline.ErrEmptyCommand)
}
