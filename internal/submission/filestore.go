package submission

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/store"
)

// DefaultStorePath is the submission file used when none is configured.
const DefaultStorePath = "qa-submissions.json"

// RecordStore persists the complete submission list.
type RecordStore interface {
	Load() ([]qa.SubmissionRecord, error)
	Save(records []qa.SubmissionRecord) error
}

// FileStore keeps every submission in a single JSON document of the form
// {"submissions": [...]}, rewritten in full on each Save.
type FileStore struct {
	path string
}

type submissionDocument struct {
	Submissions []qa.SubmissionRecord `json:"submissions"`
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultStorePath
	}
	return &FileStore{path: path}
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads all submissions. A missing file yields an empty list.
func (s *FileStore) Load() ([]qa.SubmissionRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []qa.SubmissionRecord{}, nil
	}
	if err != nil {
		return nil, qa.WrapError(qa.ErrCodeStorageIO, err, "read %s", s.path)
	}

	var doc submissionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, qa.WrapError(qa.ErrCodeStorageIO, err, "decode %s", s.path)
	}
	if doc.Submissions == nil {
		doc.Submissions = []qa.SubmissionRecord{}
	}
	return doc.Submissions, nil
}

// Save replaces the document with records.
func (s *FileStore) Save(records []qa.SubmissionRecord) error {
	if records == nil {
		records = []qa.SubmissionRecord{}
	}
	data, err := json.MarshalIndent(submissionDocument{Submissions: records}, "", "  ")
	if err != nil {
		return qa.WrapError(qa.ErrCodeStorageIO, err, "encode submissions")
	}
	if err := store.WriteFileAtomic(s.path, data); err != nil {
		return qa.WrapError(qa.ErrCodeStorageIO, err, "write %s", s.path)
	}
	return nil
}
