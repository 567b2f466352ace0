package octoprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/koios/octodash/pkg/models"
)

// DefaultLocation is the storage location used when none is given
const DefaultLocation = "local"

func locationOrDefault(location string) string {
	if location == "" {
		return DefaultLocation
	}
	return location
}

func filePath(location, path string) string {
	return "/files/" + escapePath(locationOrDefault(location)) + "/" + escapePath(path)
}

// GetFiles lists the files of a storage location (local or sdcard)
func (c *Client) GetFiles(ctx context.Context, location string) (*models.FilesResponse, error) {
	var files models.FilesResponse
	path := "/files/" + escapePath(locationOrDefault(location))
	if err := c.doJSON(ctx, "get files", http.MethodGet, path, nil, &files); err != nil {
		return nil, err
	}
	return &files, nil
}

// SelectFile selects a file for printing, optionally starting the print right
// away. print is forwarded as given and defaults to false.
func (c *Client) SelectFile(ctx context.Context, location, path string, print interface{}) error {
	if print == nil {
		print = false
	}
	body := map[string]interface{}{
		"command": "select",
		"print":   print,
	}
	return c.doJSON(ctx, "select file", http.MethodPost, filePath(location, path), body, nil)
}

// DeleteFile deletes a file or folder
func (c *Client) DeleteFile(ctx context.Context, location, path string) error {
	return c.doJSON(ctx, "delete file", http.MethodDelete, filePath(location, path), nil, nil)
}

// UploadFile uploads content as filename to a storage location and returns
// the upstream response unchanged.
func (c *Client) UploadFile(ctx context.Context, location, filename string, content io.Reader) (json.RawMessage, error) {
	const op = "upload file"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: fmt.Errorf("failed to create form file: %w", err)}
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: fmt.Errorf("failed to buffer upload: %w", err)}
	}
	if err := mw.Close(); err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: fmt.Errorf("failed to finish multipart body: %w", err)}
	}

	path := "/files/" + escapePath(locationOrDefault(location))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL(path), &buf)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result json.RawMessage
	if err := c.do(op, req, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DownloadFile fetches the raw content of a file from the downloads endpoint
func (c *Client) DownloadFile(ctx context.Context, location, path string) (string, error) {
	const op = "download file"

	target := c.serverURL + "/downloads/files/" + escapePath(locationOrDefault(location)) + "/" + escapePath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &Error{Kind: KindTransport, Op: op, Err: err}
	}
	req.Header.Set("Accept", "text/plain, */*")

	var content string
	if err := c.do(op, req, &content); err != nil {
		return "", err
	}
	return content, nil
}
