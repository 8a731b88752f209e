package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/bugzapp/internal/qa"
)

const (
	testRunDir   = "test-runs"
	bugReportDir = "bug-reports"
)

// FileStore keeps one JSON document per record under a base directory:
//
//	<dir>/test-runs/<id>.json
//	<dir>/bug-reports/<id>.json
//
// Writes go to a temp file in the same directory and are renamed into place,
// so readers never observe a partial document.
type FileStore struct {
	dir  string
	opts options
}

// NewFileStore creates a file-backed store rooted at dir. Directories are
// created lazily on first write.
func NewFileStore(dir string, opts ...Option) *FileStore {
	return &FileStore{dir: dir, opts: buildOptions(opts)}
}

// Dir returns the base directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// SaveTestRun implements Storage.
func (s *FileStore) SaveTestRun(ctx context.Context, input TestRunInput) (TestRunRecord, error) {
	record := TestRunRecord{
		ID:               s.opts.ids.Generate(),
		SuiteID:          input.SuiteID,
		SuiteDescription: input.SuiteDescription,
		Summary:          input.Summary,
		Metadata:         testRunMetadata(input.Summary, input.Metadata),
		CreatedAt:        qa.Normalize(s.opts.clock.Now()),
	}
	if err := s.write(testRunDir, record.ID, record); err != nil {
		return TestRunRecord{}, fmt.Errorf("save test run: %w", err)
	}
	return record, nil
}

// SaveBugReport implements Storage.
func (s *FileStore) SaveBugReport(ctx context.Context, input BugReportInput) (BugReportRecord, error) {
	record := BugReportRecord{
		ID:        s.opts.ids.Generate(),
		Report:    input.Report,
		Metadata:  bugReportMetadata(input.Report, input.Metadata),
		CreatedAt: qa.Normalize(s.opts.clock.Now()),
	}
	if err := s.write(bugReportDir, record.ID, record); err != nil {
		return BugReportRecord{}, fmt.Errorf("save bug report: %w", err)
	}
	return record, nil
}

// UpdateBugReport implements Storage. The record must already exist.
func (s *FileStore) UpdateBugReport(ctx context.Context, record BugReportRecord) (BugReportRecord, error) {
	if _, err := s.GetBugReport(ctx, record.ID); err != nil {
		return BugReportRecord{}, fmt.Errorf("update bug report: %w", err)
	}
	record.Metadata.Tags = NormalizeTags(record.Metadata.Tags)
	if err := s.write(bugReportDir, record.ID, record); err != nil {
		return BugReportRecord{}, fmt.Errorf("update bug report: %w", err)
	}
	return record, nil
}

// SearchTestRuns implements Storage.
func (s *FileStore) SearchTestRuns(ctx context.Context, query Query) ([]TestRunRecord, error) {
	all, err := readAll[TestRunRecord](filepath.Join(s.dir, testRunDir))
	if err != nil {
		return nil, fmt.Errorf("search test runs: %w", err)
	}
	records := make([]TestRunRecord, 0, len(all))
	for _, r := range all {
		if Matches(r.Metadata, r.CreatedAt, query) {
			records = append(records, r)
		}
	}
	sortTestRuns(records)
	return records, nil
}

// SearchBugReports implements Storage.
func (s *FileStore) SearchBugReports(ctx context.Context, query Query) ([]BugReportRecord, error) {
	all, err := readAll[BugReportRecord](filepath.Join(s.dir, bugReportDir))
	if err != nil {
		return nil, fmt.Errorf("search bug reports: %w", err)
	}
	records := make([]BugReportRecord, 0, len(all))
	for _, r := range all {
		if Matches(r.Metadata, r.CreatedAt, query) {
			records = append(records, r)
		}
	}
	sortBugReports(records)
	return records, nil
}

// GetTestRun implements Storage.
func (s *FileStore) GetTestRun(ctx context.Context, id string) (TestRunRecord, error) {
	var record TestRunRecord
	if err := s.read(testRunDir, id, &record); err != nil {
		return TestRunRecord{}, fmt.Errorf("get test run: %w", err)
	}
	return record, nil
}

// GetBugReport implements Storage.
func (s *FileStore) GetBugReport(ctx context.Context, id string) (BugReportRecord, error) {
	var record BugReportRecord
	if err := s.read(bugReportDir, id, &record); err != nil {
		return BugReportRecord{}, fmt.Errorf("get bug report: %w", err)
	}
	return record, nil
}

// Close implements Storage. FileStore holds no open handles.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) recordPath(kind, id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", qa.NewError(qa.ErrCodeNotFound, "invalid record id %q", id)
	}
	return filepath.Join(s.dir, kind, id+".json"), nil
}

func (s *FileStore) read(kind, id string, v any) error {
	path, err := s.recordPath(kind, id)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return qa.NewError(qa.ErrCodeNotFound, "%s record %s not found", kind, id)
	}
	if err != nil {
		return qa.WrapError(qa.ErrCodeStorageIO, err, "read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return qa.WrapError(qa.ErrCodeStorageIO, err, "decode %s", path)
	}
	return nil
}

func (s *FileStore) write(kind, id string, v any) error {
	path, err := s.recordPath(kind, id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return qa.WrapError(qa.ErrCodeStorageIO, err, "encode %s", id)
	}
	if err := WriteFileAtomic(path, data); err != nil {
		return qa.WrapError(qa.ErrCodeStorageIO, err, "write %s", path)
	}
	return nil
}

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place. Parent directories are created as needed.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// readAll decodes every *.json file in dir. A missing directory is empty.
func readAll[T any](dir string) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, qa.WrapError(qa.ErrCodeStorageIO, err, "list %s", dir)
	}

	records := make([]T, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, qa.WrapError(qa.ErrCodeStorageIO, err, "read %s", path)
		}
		var record T
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, qa.WrapError(qa.ErrCodeStorageIO, err, "decode %s", path)
		}
		records = append(records, record)
	}
	return records, nil
}
