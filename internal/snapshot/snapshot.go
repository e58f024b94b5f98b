package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/burnout-twin/burnout-twin/internal/eval"
	"github.com/burnout-twin/burnout-twin/internal/persona"
	"github.com/burnout-twin/burnout-twin/internal/proposal"
)

// #region build
// NewDocument flattens a publish result into the file layout.
func NewDocument(push persona.PushResult) Document {
	return Document{
		Snapshot:      push.Payload,
		Assessment:    parseAssessment(push.AssessmentRaw),
		AssessmentRaw: push.AssessmentRaw,
		Band:          eval.Classify(push.Payload.State.Vitals),
	}
}

func parseAssessment(raw string) *Assessment {
	obj, ok := proposal.Extract(raw)
	if !ok {
		return nil
	}
	var a Assessment
	if err := json.Unmarshal([]byte(obj), &a); err != nil || a.Assessment == "" {
		return nil
	}
	return &a
}

// #endregion build

// #region publisher
// Publisher writes documents to one path. Readers never see a partial file.
type Publisher struct {
	path string
}

// NewPublisher returns a publisher for path, or DefaultPath when empty.
func NewPublisher(path string) *Publisher {
	if path == "" {
		path = DefaultPath
	}
	return &Publisher{path: path}
}

// Path is the file the publisher writes.
func (p *Publisher) Path() string { return p.path }

// Write replaces the file with doc.
func (p *Publisher) Write(doc Document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := writeFileAtomic(p.path, b, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp_snapshot_*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// #endregion publisher

// #region read
// Read returns the raw file bytes.
func Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ReadDocument decodes the file.
func ReadDocument(path string) (Document, error) {
	b, err := Read(path)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return Document{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return doc, nil
}

// #endregion read
