package domain

// RawDocument is file content before text extraction.
type RawDocument struct {
	// URI is where the content was read from.
	URI string

	// MIMEType is the detected content type without parameters.
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}
