package jobrunner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Client talks to the Job Backend: the opaque HTTP service that stores uploads,
// owns sessions and runs generation tasks. The credential is an opaque bearer
// token attached to every request and never inspected here.
type Client struct {
	baseURL    string
	credential string
	httpClient *http.Client
}

func NewClient(baseURL, credential string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		credential: credential,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(method, url string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.credential)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp, respBody)
	}

	return respBody, nil
}

// UploadImage sends a binary payload and returns the server-assigned reference.
func (c *Client) UploadImage(filename string, data []byte, mimeType string) (*UploadOut, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.WriteField("mime_type", mimeType); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	body, err := c.do("POST", c.baseURL+"/upload", &buf, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var result UploadOut
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	return &result, nil
}

// CreateSession opens a logical unit of work bound to uploaded resources.
func (c *Client) CreateSession(resourceIDs []string) (*SessionOut, error) {
	jsonData, err := json.Marshal(CreateSessionIn{Resources: resourceIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.do("POST", c.baseURL+"/sessions", bytes.NewBuffer(jsonData), "application/json")
	if err != nil {
		return nil, err
	}

	var result SessionOut
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	if result.SessionID == "" {
		return nil, fmt.Errorf("session_id is empty in response, body: %s", string(body))
	}

	return &result, nil
}

// SubmitTask starts one generation job and returns the initial task snapshot.
func (c *Client) SubmitTask(sessionID, instruction string, attachmentIDs []string) (*TaskOut, error) {
	jsonData, err := json.Marshal(SubmitIn{
		SessionID:   sessionID,
		Instruction: instruction,
		Attachments: attachmentIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.do("POST", c.baseURL+"/submit", bytes.NewBuffer(jsonData), "application/json")
	if err != nil {
		return nil, err
	}

	var result TaskOut
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	if result.TaskID == "" {
		return nil, fmt.Errorf("task_id is empty in response, body: %s", string(body))
	}

	return &result, nil
}

// GetTaskStatus queries a task. Read-only and idempotent; safe to repeat.
func (c *Client) GetTaskStatus(taskID string) (*TaskOut, error) {
	body, err := c.do("GET", c.baseURL+"/status/"+taskID, nil, "")
	if err != nil {
		return nil, err
	}

	var result TaskOut
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	return &result, nil
}

// GetTaskResult fetches the terminal artifact of a task.
func (c *Client) GetTaskResult(taskID string) (*ResultOut, error) {
	body, err := c.do("GET", c.baseURL+"/result/"+taskID, nil, "")
	if err != nil {
		return nil, err
	}

	var result ResultOut
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	return &result, nil
}

// GetHistory fetches the authoritative transcript for a session.
func (c *Client) GetHistory(sessionID string) (*HistoryOut, error) {
	body, err := c.do("GET", c.baseURL+"/history/"+sessionID, nil, "")
	if err != nil {
		return nil, err
	}

	var result HistoryOut
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	return &result, nil
}

// DeleteSession resets a session server-side.
func (c *Client) DeleteSession(sessionID string) error {
	_, err := c.do("DELETE", c.baseURL+"/session/"+sessionID, nil, "")
	return err
}

// DownloadFile fetches a result image by its absolute URL. No credential is
// attached; result URLs are pre-signed by the backend.
func (c *Client) DownloadFile(fileURL string) ([]byte, error) {
	req, err := http.NewRequest("GET", fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to download file: status %d, body: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
