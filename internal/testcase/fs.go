package testcase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
)

var _ Store = (*FSStore)(nil)

// InfoFile is the manifest inside every test-case directory.
const InfoFile = "info"

// info mirrors the manifest written by the problem uploader.
type info struct {
	SPJ       bool                `json:"spj"`
	TestCases map[string]caseInfo `json:"test_cases"`
}

type caseInfo struct {
	InputName  string `json:"input_name"`
	OutputName string `json:"output_name,omitempty"`
}

// FSStore reads <base>/<id>/info and the files it names.
type FSStore struct {
	base string
}

func NewFSStore(base string) *FSStore {
	return &FSStore{base: base}
}

// Dir is where a set's files and cached special judges live.
func (s *FSStore) Dir(id string) string {
	return filepath.Join(s.base, id)
}

func (s *FSStore) Load(_ context.Context, id string) (*domain.TestCaseSet, error) {
	if err := domain.CheckIdentifier(id); err != nil {
		return nil, domain.NewError(domain.KindInvalidRequest, "test_case_id %q: %v", id, err)
	}

	dir := s.Dir(id)
	raw, err := os.ReadFile(filepath.Join(dir, InfoFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewError(domain.KindTestCaseNotFound, "test case %s not found", id)
		}
		return nil, domain.WrapError(domain.KindSystemError, fmt.Errorf("read test case info: %w", err))
	}

	var manifest info
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, domain.WrapError(domain.KindSystemError, fmt.Errorf("parse test case info %s: %w", id, err))
	}

	set := &domain.TestCaseSet{ID: id, SPJ: manifest.SPJ}
	seen := make(map[int]string, len(manifest.TestCases))
	for key, ci := range manifest.TestCases {
		idx, err := strconv.Atoi(key)
		if err != nil || idx <= 0 {
			return nil, domain.NewError(domain.KindSystemError, "test case %s: bad index %q", id, key)
		}
		// "1" and "01" name the same case.
		if prev, dup := seen[idx]; dup {
			return nil, domain.NewError(domain.KindSystemError, "test case %s: duplicate index %q and %q", id, prev, key)
		}
		seen[idx] = key

		tc := domain.TestCase{Index: idx}
		if tc.Input, err = readCaseFile(dir, ci.InputName); err != nil {
			return nil, err
		}
		if ci.OutputName != "" {
			if tc.Expected, err = readCaseFile(dir, ci.OutputName); err != nil {
				return nil, err
			}
		} else if !manifest.SPJ {
			return nil, domain.NewError(domain.KindSystemError, "test case %s/%d has no output", id, idx)
		}
		set.Cases = append(set.Cases, tc)
	}

	sort.Slice(set.Cases, func(i, j int) bool { return set.Cases[i].Index < set.Cases[j].Index })
	return set, nil
}

func readCaseFile(dir, name string) ([]byte, error) {
	if err := domain.CheckLocalName(name); err != nil {
		return nil, domain.NewError(domain.KindSystemError, "test case file %q: %v", name, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, domain.WrapError(domain.KindSystemError, fmt.Errorf("read test case file: %w", err))
	}
	return data, nil
}
