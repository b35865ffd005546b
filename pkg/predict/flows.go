package predict

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"strings"
	"sync"
)

type flowKind int

const (
	flowLine flowKind = iota
	flowPoint
	flowUpload
	flowCount
)

// FlowStatus reports which flows have a request in flight.
type FlowStatus struct {
	Line   bool `json:"lineFetching"`
	Point  bool `json:"pointFetching"`
	Upload bool `json:"uploadFetching"`
}

// flowState tracks one generation counter per flow. Starting a flow bumps
// its generation; an older request finding a newer generation on return
// knows it was superseded.
type flowState struct {
	mu     sync.Mutex
	gens   [flowCount]uint64
	active [flowCount]int
}

func (s *flowState) begin(k flowKind) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[k]++
	s.active[k]++
	return s.gens[k]
}

func (s *flowState) end(k flowKind, _ uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[k]--
}

func (s *flowState) current(k flowKind, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[k] == gen
}

func (s *flowState) status() FlowStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FlowStatus{
		Line:   s.active[flowLine] > 0,
		Point:  s.active[flowPoint] > 0,
		Upload: s.active[flowUpload] > 0,
	}
}

// multipartFile wraps file bytes in the multipart form the upload service
// expects: a "file" part plus a "fileType" hint.
func multipartFile(filename, ext string, data []byte) (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("build upload form: %w", err)
	}

	fileType := strings.TrimPrefix(ext, ".")
	if fileType == "json" {
		fileType = "geojson"
	}
	if err := w.WriteField("fileType", fileType); err != nil {
		return nil, "", fmt.Errorf("build upload form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("build upload form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
