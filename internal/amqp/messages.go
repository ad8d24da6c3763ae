package amqp

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"time"

	"gofinances/internal/csvimport"
)

var errInvalidFilename = errors.New("import request filename must be a bare file name")

// ImportRequestMessage names an uploaded CSV file. The file stays on the
// upload directory shared by the server and the worker; the receiver decides
// which directory that is.
type ImportRequestMessage struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
}

func NewImportRequestMessage(id string, src csvimport.FileSource) *ImportRequestMessage {
	return &ImportRequestMessage{
		ID:        id,
		Filename:  src.Filename,
		Timestamp: time.Now(),
	}
}

// SourceIn returns the named file inside dir. Filenames carrying a path are
// rejected.
func (m *ImportRequestMessage) SourceIn(dir string) (csvimport.FileSource, error) {
	if !isBareFilename(m.Filename) {
		return csvimport.FileSource{}, errInvalidFilename
	}
	return csvimport.NewFileSource(dir, m.Filename), nil
}

func isBareFilename(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}

func (m *ImportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ImportRequestMessageFromJSON decodes data and rejects messages without an
// ID or filename.
func ImportRequestMessageFromJSON(data []byte) (*ImportRequestMessage, error) {
	var msg ImportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" || msg.Filename == "" {
		return nil, errors.New("import request without id or filename")
	}
	if !isBareFilename(msg.Filename) {
		return nil, errInvalidFilename
	}
	return &msg, nil
}
