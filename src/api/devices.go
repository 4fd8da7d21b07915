package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

// ListDevices returns every device of the directory. Filtering by
// function happens at the caller.
func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	if c.Session().Empty() {
		return nil, ErrNoSession
	}
	resp, err := c.Do(ctx, Request{Method: resty.MethodGet, Endpoint: c.config.DeviceRoute})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errors.New(errorMessage(resp.Body(), "Failed to fetch devices: "+strconv.Itoa(resp.StatusCode())))
	}
	var page models.DevicePage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, errors.New("Failed to parse devices: " + err.Error())
	}
	return page.Data.Data, nil
}

// UploadImage posts a JPEG to the upload route and returns the reference
// the backend stored it under.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	resp, err := c.Do(ctx, Request{
		Method:   resty.MethodPost,
		Endpoint: c.config.UploadRoute,
		Files:    []File{{Param: "file", Name: filename, Data: data}},
	})
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", errors.New(errorMessage(resp.Body(), "Failed to upload image: "+strconv.Itoa(resp.StatusCode())))
	}
	var uploaded models.ImageUploadResponse
	if err := json.Unmarshal(resp.Body(), &uploaded); err != nil {
		return "", errors.New("Failed to parse upload response: " + err.Error())
	}
	if uploaded.Path != "" {
		return uploaded.Path, nil
	}
	if uploaded.Filename != "" {
		return uploaded.Filename, nil
	}
	return "", errors.New("Upload response has no image reference")
}
